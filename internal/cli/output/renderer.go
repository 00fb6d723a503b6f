// Package output renders command results for terminals and pipes.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how results are written.
type Mode string

// Output modes.
const (
	ModeAuto  Mode = "auto"  // table on a terminal, json otherwise
	ModeTable Mode = "table" // boxed tables
	ModeText  Mode = "text"  // tab-separated lines
	ModeJSON  Mode = "json"
)

// Styles are the text styles a Renderer applies.
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Title:   lr.NewStyle().Bold(true),
		Heading: lr.NewStyle().Underline(true),
		Success: lr.NewStyle().Foreground(lipgloss.Color("2")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("3")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Muted:   lr.NewStyle().Faint(true),
	}
}

// Renderer writes results to out and diagnostics to errOut. Colors are used
// only when out is a terminal.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lr := lipgloss.NewRenderer(out)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{out: out, errOut: errOut, isTTY: isTTY, mode: mode, styles: newStyles(lr)}
}

// Styles returns the renderer's styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeTable
	}
	return ModeJSON
}

// Writer returns the result writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a plain line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section heading.
func (r *Renderer) Header(level int, title string) {
	if level <= 1 {
		r.Println(r.style(title, r.styles.Title))
		return
	}
	r.Println(r.style(title, r.styles.Heading))
}

// Success writes a confirmation to the diagnostics stream.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.style(msg, r.styles.Success))
}

// Warning writes a warning to the diagnostics stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.style("warning: "+msg, r.styles.Warning))
}

// Muted writes secondary information.
func (r *Renderer) Muted(msg string) {
	r.Println(r.style(msg, r.styles.Muted))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under header. ModeText writes tab-separated lines, every
// other mode a boxed table.
func (r *Renderer) Table(header []string, rows [][]any) {
	if r.EffectiveMode() == ModeText {
		r.Println(strings.Join(header, "\t"))
		for _, row := range rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = FormatValue(v)
			}
			r.Println(strings.Join(cells, "\t"))
		}
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = FormatValue(v)
		}
		t.AppendRow(tr)
	}
	t.Render()
}

// Error writes an error to the diagnostics stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.style("error: "+msg, r.styles.Error))
}

func (r *Renderer) style(s string, st lipgloss.Style) string {
	if !r.isTTY {
		return s
	}
	return st.Render(s)
}

// FormatValue renders a cell value. NULL stands for nil.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		if s := string(b); !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
