package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type severity int

const (
	severityInfo severity = iota
	severityOK
	severityWarn
	severityError
)

const ansiReset = "\x1b[0m"

var severityStyles = [...]struct {
	tag   string
	color string
}{
	severityInfo:  {"INFO", "\x1b[34m"},
	severityOK:    {"OK", "\x1b[32m"},
	severityWarn:  {"WARN", "\x1b[33m"},
	severityError: {"ERROR", "\x1b[31m"},
}

// statusPrinter writes aligned "label: [TAG] detail" lines grouped under
// section headings. Color is applied only when writing to a terminal.
type statusPrinter struct {
	out        io.Writer
	colorize   bool
	labelWidth int
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: isTerminal(out), labelWidth: 18}
}

func (p *statusPrinter) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if p.colorize {
		color := severityStyles[severityInfo].color
		heading, rule = color+heading+ansiReset, color+rule+ansiReset
	}
	fmt.Fprintln(p.out, heading)
	fmt.Fprintln(p.out, rule)
}

func (p *statusPrinter) line(label string, sev severity, detail string) {
	fmt.Fprintln(p.out, p.format(label, sev, detail))
}

func (p *statusPrinter) format(label string, sev severity, detail string) string {
	style := severityStyles[sev]
	text := fmt.Sprintf("  %-*s [%s]", p.labelWidth, label+":", style.tag)
	if detail != "" {
		text += " " + detail
	}
	if p.colorize {
		text = style.color + text + ansiReset
	}
	return text
}

func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// queueSeverity grades a queue by its worst entry state.
func queueSeverity(pending, failed int) severity {
	switch {
	case failed > 0:
		return severityError
	case pending > 0:
		return severityWarn
	default:
		return severityOK
	}
}
