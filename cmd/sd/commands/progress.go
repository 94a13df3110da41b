package commands

import (
	"sealdrive/pkg/orchestrator"

	"github.com/pterm/pterm"
)

// progressBar 把编排器的百分比进度映射到 pterm 进度条
// 编排器保证进度单调不减，这里只需要累加差值
type progressBar struct {
	bar  *pterm.ProgressbarPrinter
	last int
}

func newProgressBar(title string) *progressBar {
	bar, err := pterm.DefaultProgressbar.WithTotal(100).WithTitle(title).Start()
	if err != nil {
		// 非终端环境下退化为无进度条
		return &progressBar{}
	}
	return &progressBar{bar: bar}
}

func (p *progressBar) report() orchestrator.Progress {
	return func(percent int) {
		if p.bar == nil || percent <= p.last {
			return
		}
		p.bar.Add(percent - p.last)
		p.last = percent
	}
}

func (p *progressBar) stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
}
