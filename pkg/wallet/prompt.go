package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"sealdrive/pkg/core"

	"golang.org/x/term"
)

// Confirmer 在签名前征求用户同意 (对应钱包弹窗)
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// AutoConfirm 总是同意 (非交互场景，例如网关)
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) error { return nil }

// TerminalConfirm 在终端上询问 y/N
type TerminalConfirm struct {
	In  io.Reader
	Out io.Writer
}

func NewTerminalConfirm() *TerminalConfirm {
	return &TerminalConfirm{In: os.Stdin, Out: os.Stderr}
}

func (c *TerminalConfirm) Confirm(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s\nApprove? [y/N]: ", prompt)

	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return core.ErrUserRejected
	}
}

// ReadPassphrase 从终端读取 keystore 口令 (不回显)
func ReadPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// 管道输入时按行读取
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
