// Package output formats fsmonitor's CLI output: styled status lines on a
// terminal, plain text when piped, or JSON lines for scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/fsmonitor/internal/action"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/monitor"
)

// Options configures a Printer.
type Options struct {
	// JSON switches to one JSON object per line.
	JSON bool
	// NoColor disables styling even on a terminal.
	NoColor bool
}

// Printer writes CLI output. Safe for concurrent use.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	json   bool
	styles Styles
}

// New creates a Printer on out. Colors are used only when out is a
// terminal, NO_COLOR is unset and opts.NoColor is false.
func New(out io.Writer, opts Options) *Printer {
	styles := NoColorStyles()
	if !opts.JSON && !opts.NoColor && !DetectNoColor() && IsTerminal(out) {
		styles = DefaultStyles()
	}
	return &Printer{out: out, json: opts.JSON, styles: styles}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// JSON reports whether the printer emits JSON lines.
func (p *Printer) JSON() bool { return p.json }

// event is the JSON line shape. Unused fields are omitted.
type event struct {
	Type       string            `json:"type"`
	Time       time.Time         `json:"time"`
	Path       string            `json:"path,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Events     int               `json:"events,omitempty"`
	Message    string            `json:"message,omitempty"`
	Code       string            `json:"code,omitempty"`
	ExitCode   *int              `json:"exit_code,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

func (p *Printer) emit(ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = p.out.Write(append(data, '\n'))
}

func (p *Printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, s)
}

// Watching announces the start of a watch.
func (p *Printer) Watching(t monitor.Target, source string) {
	if p.json {
		p.emit(event{Type: "watching", Time: time.Now(), Path: t.Dir, Kind: t.Kinds.String(),
			Details: map[string]string{"filter": t.Filter, "source": source}})
		return
	}
	p.line(fmt.Sprintf("%s %s %s",
		p.styles.Header.Render("watching"),
		p.styles.Path.Render(t.Dir),
		p.styles.Dim.Render(fmt.Sprintf("(filter %s, %s, %s)", t.Filter, t.Kinds, source))))
}

// Change prints one notification.
func (p *Printer) Change(c monitor.Change) {
	if p.json {
		p.emit(event{Type: "change", Time: c.At, Path: c.Path, Kind: c.Kind.String(), Events: c.Events})
		return
	}
	suffix := ""
	if c.Events > 1 {
		suffix = p.styles.Dim.Render(fmt.Sprintf(" (%d events)", c.Events))
	}
	p.line(fmt.Sprintf("%s %s %s%s",
		p.styles.Dim.Render(c.At.Format("15:04:05.000")),
		p.styles.Kind.Render(c.Kind.String()),
		p.styles.Path.Render(c.Path),
		suffix))
}

// ActionResult prints the outcome of a command run.
func (p *Printer) ActionResult(r action.Result) {
	if p.json {
		code := r.ExitCode
		ev := event{Type: "action", Time: time.Now(), Path: r.Change.Path,
			ExitCode: &code, DurationMS: r.Duration.Milliseconds()}
		if r.Err != nil {
			ev.Message = r.Err.Error()
			ev.Code = errors.GetCode(r.Err)
		}
		p.emit(ev)
		return
	}
	if r.Err != nil {
		p.line(p.styles.Error.Render(fmt.Sprintf("✗ command failed (exit %d) after %s", r.ExitCode, r.Duration.Round(time.Millisecond))))
		return
	}
	p.line(p.styles.Success.Render(fmt.Sprintf("✓ command finished in %s", r.Duration.Round(time.Millisecond))))
}

// Warning prints a non-fatal problem.
func (p *Printer) Warning(err error) {
	if p.json {
		ev := event{Type: "warning", Time: time.Now(), Message: err.Error(), Code: errors.GetCode(err)}
		if me, ok := errors.As(err); ok {
			ev.Message = me.Message
			ev.Details = me.Details
		}
		p.emit(ev)
		return
	}
	p.line(p.styles.Warning.Render("! " + err.Error()))
}

// Status prints an informational line. Suppressed in JSON mode.
func (p *Printer) Status(msg string) {
	if p.json {
		return
	}
	p.line(p.styles.Dim.Render(msg))
}

// Statusf formats and prints an informational line.
func (p *Printer) Statusf(format string, args ...any) {
	p.Status(fmt.Sprintf(format, args...))
}
