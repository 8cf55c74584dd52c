package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
)

// Printer writes status lines for operators, colored when attached to a
// terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: isTerminal(w)}
}

func (p *Printer) line(symbol, color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s %s\n", color, symbol, ColorReset, msg)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", symbol, msg)
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	p.line("✓", ColorGreen, format, args...)
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	p.line("⚠", ColorYellow, format, args...)
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	p.line("ℹ", ColorBlue, format, args...)
}

// Progress starts a bar for total steps.
func (p *Printer) Progress(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, width: 30, prefix: prefix, writer: p.w, colorize: p.color}
}

// ProgressBar renders step progress on a single line.
type ProgressBar struct {
	mu       sync.Mutex
	total    int
	current  int
	width    int
	prefix   string
	writer   io.Writer
	colorize bool
}

// Increment advances the bar by one step.
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.current < pb.total {
		pb.current++
	}
	pb.render()
}

// Finish completes the bar and ends the line.
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.writer)
}

func (pb *ProgressBar) render() {
	percent := 1.0
	if pb.total > 0 {
		percent = float64(pb.current) / float64(pb.total)
	}
	filled := int(float64(pb.width) * percent)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	if pb.colorize {
		if percent < 1.0 {
			bar = ColorCyan + bar + ColorReset
		} else {
			bar = ColorGreen + bar + ColorReset
		}
	}
	fmt.Fprintf(pb.writer, "\r%s [%s] %d/%d", pb.prefix, bar, pb.current, pb.total)
}

// isTerminal checks if w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
