package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"coworkshell/pkg/domain"
)

// consolePresenter 在终端中展示页面对话框
type consolePresenter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func newConsolePresenter(in io.Reader, out io.Writer) *consolePresenter {
	return &consolePresenter{in: bufio.NewReader(in), out: out}
}

func (p *consolePresenter) Present(_ context.Context, d domain.Dialog) (domain.DialogResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch d.Type {
	case domain.DialogAlert:
		fmt.Fprintf(p.out, "[alert] %s\n", d.Message)
		return domain.DialogResult{Accepted: true}, nil
	case domain.DialogConfirm:
		fmt.Fprintf(p.out, "[confirm] %s [y/N]: ", d.Message)
		line, err := p.readLine()
		if err != nil {
			return domain.DialogResult{}, err
		}
		ok := strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
		return domain.DialogResult{Accepted: ok}, nil
	default:
		fmt.Fprintf(p.out, "[prompt] %s (%s): ", d.Message, d.DefaultText)
		line, err := p.readLine()
		if err != nil {
			return domain.DialogResult{}, err
		}
		if line == "" {
			line = d.DefaultText
		}
		return domain.DialogResult{Accepted: true, Text: &line}, nil
	}
}

func (p *consolePresenter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
