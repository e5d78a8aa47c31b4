// Package logging provides colored, leveled console output for the tandem
// CLI.
//
// All output functions write a prefixed, color-coded line. Debug output is
// suppressed unless verbose mode is enabled via SetVerbose(true). Error
// lines go to the error writer, everything else to the output writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/muesli/reflow/wordwrap"
)

// DefaultWrapWidth is the column at which model answers are wrapped.
const DefaultWrapWidth = 100

var (
	mu        sync.Mutex
	out       io.Writer = os.Stdout
	errOut    io.Writer = os.Stderr
	verbose   bool
	wrapWidth = DefaultWrapWidth
)

// Color printers for each log level.
var (
	infoPrefix    = color.New(color.FgBlue).SprintFunc()
	successPrefix = color.New(color.FgGreen).SprintFunc()
	warnPrefix    = color.New(color.FgYellow).SprintFunc()
	errorPrefix   = color.New(color.FgRed).SprintFunc()
	phasePrefix   = color.New(color.FgCyan).SprintFunc()
	debugPrefix   = color.New(color.FgBlue).SprintFunc()
	actorPrefix   = color.New(color.FgMagenta).SprintFunc()
	modelPrefix   = color.New(color.FgGreen, color.Bold).SprintFunc()
	systemPrefix  = color.New(color.FgHiBlack).SprintFunc()
)

// SetVerbose enables or disables Debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// SetOutput redirects regular and error output. A nil writer leaves the
// current one in place.
func SetOutput(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if stdout != nil {
		out = stdout
	}
	if stderr != nil {
		errOut = stderr
	}
}

// SetWrapWidth sets the wrap column for Model output; values below 20 are
// ignored.
func SetWrapWidth(width int) {
	mu.Lock()
	defer mu.Unlock()
	if width >= 20 {
		wrapWidth = width
	}
}

func emit(w func() io.Writer, line string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(w(), line)
}

func stdout() io.Writer { return out }
func stderr() io.Writer { return errOut }

// Info prints an informational message in blue.
func Info(msg string) {
	emit(stdout, infoPrefix("[INFO]")+" "+msg)
}

// Success prints a success message in green.
func Success(msg string) {
	emit(stdout, successPrefix("[SUCCESS]")+" "+msg)
}

// Warn prints a warning message in yellow.
func Warn(msg string) {
	emit(stdout, warnPrefix("[WARN]")+" "+msg)
}

// Error prints an error message to the error writer in red.
func Error(msg string) {
	emit(stderr, errorPrefix("[ERROR]")+" "+msg)
}

// Phase prints a header in cyan, surrounded by separator lines.
func Phase(msg string) {
	sep := phasePrefix("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	emit(stdout, sep+"\n"+phasePrefix("[PHASE]")+" "+msg+"\n"+sep)
}

// Debug prints a debug message in blue, only when verbose mode is enabled.
func Debug(msg string) {
	mu.Lock()
	v := verbose
	mu.Unlock()
	if !v {
		return
	}
	emit(stdout, debugPrefix("[DEBUG]")+" "+msg)
}

// Actor prints an actor state transition, e.g. "[EXECUTOR] RUNNING: tool list_dir".
func Actor(actor, label, event string) {
	line := actorPrefix("["+strings.ToUpper(actor)+"]") + " " + label
	if event != "" {
		line += ": " + event
	}
	emit(stdout, line)
}

// Model prints a model answer, word-wrapped.
func Model(text string) {
	emit(stdout, modelPrefix("[MODEL]")+"\n"+Wrap(text))
}

// System prints a runtime notice.
func System(msg string) {
	emit(stdout, systemPrefix("[SYSTEM]")+" "+msg)
}

// Wrap word-wraps text at the configured width.
func Wrap(text string) string {
	mu.Lock()
	width := wrapWidth
	mu.Unlock()
	return wordwrap.String(text, width)
}

// FormatDuration converts a duration in seconds to a human-readable string.
//
// Examples:
//
//	FormatDuration(0)    => "0s"
//	FormatDuration(45)   => "45s"
//	FormatDuration(90)   => "1m 30s"
//	FormatDuration(3661) => "1h 1m 1s"
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}
