package orchestrator

import "sync"

// Progress 进度回调 (0-100)
type Progress func(percent int)

// tracker 保证上报的进度单调递增
type tracker struct {
	mu   sync.Mutex
	fn   Progress
	last int
}

func newTracker(fn Progress) *tracker {
	return &tracker{fn: fn}
}

func (t *tracker) set(p int) {
	if t == nil || t.fn == nil {
		return
	}
	if p > 100 {
		p = 100
	}
	t.mu.Lock()
	if p <= t.last {
		t.mu.Unlock()
		return
	}
	t.last = p
	t.mu.Unlock()
	t.fn(p)
}

// band 把子任务的 done/total 映射到 [from, to] 区间
func (t *tracker) band(from, to int) func(done, total int64) {
	return func(done, total int64) {
		if total <= 0 {
			return
		}
		if done > total {
			done = total
		}
		t.set(from + int(int64(to-from)*done/total))
	}
}
