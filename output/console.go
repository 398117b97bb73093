package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/fkie-cad/ahkdump"
)

func severityPrefix(severity ahkdump.Severity) string {
	switch severity {
	case ahkdump.SeverityInfo:
		return "[*]"
	case ahkdump.SeveritySuccess:
		return color.GreenString("[+]")
	case ahkdump.SeverityWarning:
		return color.YellowString("[!]")
	case ahkdump.SeverityError:
		return color.RedString("[-]")
	}
	return "[?]"
}

// ConsoleReporter is an ahkdump.Observer for live console output. Log
// events are printed one per line, progress is kept in a single line
// which is overwritten until the next log event.
type ConsoleReporter struct {
	out     io.Writer
	mux     sync.Mutex
	verbose bool

	progressPID  int
	progressOpen bool
}

// NewConsoleReporter creates a new ConsoleReporter. Progress is only
// printed if verbose is set.
func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{
		out:         out,
		verbose:     verbose,
		progressPID: -1,
	}
}

func (r *ConsoleReporter) OnProgress(pid int, bytesScanned uint64) {
	if !r.verbose {
		return
	}

	r.mux.Lock()
	defer r.mux.Unlock()

	if r.progressOpen && r.progressPID != pid {
		fmt.Fprintln(r.out)
	}
	r.progressPID = pid
	r.progressOpen = true
	fmt.Fprintf(r.out, "\r%-64s", fmt.Sprintf("Scanning %d: %s", pid, humanize.IBytes(bytesScanned)))
}

func (r *ConsoleReporter) OnLog(severity ahkdump.Severity, message string) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.progressOpen {
		fmt.Fprintln(r.out)
		r.progressOpen = false
	}
	fmt.Fprintf(r.out, "%s %s\n", severityPrefix(severity), message)
}
