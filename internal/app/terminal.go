package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// TerminalPresenter writes the loading state and dialogs as plain text.
type TerminalPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalPresenter writes to w, or stdout when w is nil.
func NewTerminalPresenter(w io.Writer) *TerminalPresenter {
	if w == nil {
		w = os.Stdout
	}
	return &TerminalPresenter{w: w}
}

func (p *TerminalPresenter) SetLoading(loading bool) {
	if !loading {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, "Loading...")
}

func (p *TerminalPresenter) ShowDialog(title, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s]\n", title)
	if message = strings.TrimRight(message, "\n"); message != "" {
		fmt.Fprintln(p.w, message)
	}
	fmt.Fprintln(p.w, "[OK]")
}
