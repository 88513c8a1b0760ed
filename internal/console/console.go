// Package console prints operator-facing diagnostics: warnings, errors and
// echoed code, colored when the output is a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// Printer writes diagnostics to an output stream.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// New returns a Printer writing to out. A nil writer means os.Stdout.
func New(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

// Warn prints a yellow warning line.
func (p *Printer) Warn(msg string) {
	p.println(yellow(msg))
}

// Error prints a red error line.
func (p *Printer) Error(msg string) {
	p.println(red(msg))
}

// Code echoes source code verbatim.
func (p *Printer) Code(code string) {
	p.println(code)
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}
