package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"folio/internal/api"
	"folio/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// statusReport collects section headers and status lines for one screen.
type statusReport struct {
	colorize bool
	lines    []string
}

func (r *statusReport) section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	r.lines = append(r.lines, r.paint(statusInfo, line), r.paint(statusInfo, rule))
}

func (r *statusReport) line(label string, kind statusKind, message string) {
	text := "[" + kindLabel(kind) + "]"
	if message != "" {
		text += " " + message
	}
	r.lines = append(r.lines, r.paint(kind, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", text)))
}

func (r *statusReport) paint(kind statusKind, text string) string {
	if !r.colorize {
		return text
	}
	return kindColor(kind) + text + ansiReset
}

func (r *statusReport) writeTo(w io.Writer) {
	for _, l := range r.lines {
		fmt.Fprintln(w, l)
	}
}

func kindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func kindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiBlue
	}
}

// renderPreflight lists each environment check folio ran before downloading.
func renderPreflight(results []preflight.Result, configPath string, colorize bool) *statusReport {
	r := &statusReport{colorize: colorize}
	r.section("folio environment")
	if configPath != "" {
		r.line("Config", statusInfo, configPath)
	}
	for _, res := range results {
		kind := statusOK
		if !res.Passed {
			kind = statusError
		}
		r.line(res.Name, kind, res.Detail)
	}
	return r
}

// renderDaemonStatus describes the download daemon at bind. status is nil when
// no daemon answered.
func renderDaemonStatus(status *api.DaemonStatus, bind string, colorize bool) *statusReport {
	r := &statusReport{colorize: colorize}
	r.section("folio daemon")
	if status == nil {
		r.line("Daemon", statusWarn, "not running at "+bind)
		return r
	}
	r.line("Daemon", statusOK, fmt.Sprintf("running (pid %d) at %s", status.PID, bind))
	r.line("Data dir", statusInfo, status.DataDir)
	r.line("Lock file", statusInfo, status.LockFilePath)

	r.section("Downloads")
	d := status.Dispatcher
	kind := statusOK
	if !d.Running {
		kind = statusWarn
	}
	r.line("Commands", kind, fmt.Sprintf("%d in flight, %d handled", d.InFlight, d.Handled))
	if d.LastError != "" {
		r.line("Last error", statusError, d.LastError)
	}
	if h := status.History; h != nil {
		r.line("PDFs", statusInfo, fmt.Sprintf("%d acquisitions, %d succeeded, %d failed", h.Total, h.Succeeded, h.Failed))
	} else {
		r.line("PDFs", statusInfo, "history disabled")
	}
	return r
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
