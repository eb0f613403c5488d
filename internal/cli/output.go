package cli

import (
	"fmt"
	"io"
	"math"
	"sync"
)

// formatter serialises writes; export steps report from several goroutines.
type formatter struct {
	mu sync.Mutex
	w  io.Writer
}

func (f *formatter) printf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, format, args...)
}

func newFormatter(w io.Writer) *formatter {
	return &formatter{w: w}
}

func (f *formatter) Info(msg string, args ...any) {
	f.printf(msg+"\n", args...)
}

func (f *formatter) Success(msg string, args ...any) {
	f.printf("done: "+msg+"\n", args...)
}

func (f *formatter) Warning(msg string, args ...any) {
	f.printf("warning: "+msg+"\n", args...)
}

func (f *formatter) Check(name string, ok bool, detail string) {
	mark := "ok  "
	if !ok {
		mark = "FAIL"
	}
	f.printf("[%s] %-10s %s\n", mark, name, detail)
}

func (f *formatter) Field(name string, value any) {
	f.printf("  %-12s %v\n", name+":", value)
}

// progressPrinter prints whole-percent changes only.
type progressPrinter struct {
	f    *formatter
	last int
}

func newProgressPrinter(f *formatter) *progressPrinter {
	return &progressPrinter{f: f, last: -1}
}

func (p *progressPrinter) Report(pct float64) {
	n := int(math.Floor(pct))
	if n <= p.last {
		return
	}
	p.last = n
	p.f.Info("progress %3d%%", n)
}
