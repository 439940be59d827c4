package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// DefaultTerminalWidth is assumed when stdout is not a terminal.
const DefaultTerminalWidth = 120

// Table renders rows in aligned columns. Widths are measured in terminal
// cells, so wide runes and ANSI styling do not break alignment.
type Table struct {
	w       io.Writer
	styles  *OutputStyles
	headers []string
	rows    [][]string
	width   int
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithTerminalWidth caps the rendered width. Zero disables the cap.
func WithTerminalWidth(width int) TableOption {
	return func(t *Table) {
		t.width = width
	}
}

// NewTable creates a table with the given headers.
func NewTable(w io.Writer, headers []string, opts ...TableOption) *Table {
	t := &Table{
		w:       w,
		styles:  NewOutputStyles(),
		headers: headers,
		width:   detectTerminalWidth(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the header and every row.
func (t *Table) Render() error {
	widths := t.columnWidths()

	if _, err := fmt.Fprintln(t.w, t.styles.Header.Render(t.line(t.headers, widths))); err != nil {
		return err
	}
	for _, row := range t.rows {
		if _, err := fmt.Fprintln(t.w, t.line(row, widths)); err != nil {
			return err
		}
	}
	return nil
}

// columnWidths sizes each column to its widest cell. When the table is wider
// than the terminal the last column is truncated.
func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = CellWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], CellWidth(cell))
		}
	}

	if t.width <= 0 || len(widths) == 0 {
		return widths
	}
	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	if over := total - t.width; over > 0 {
		last := len(widths) - 1
		widths[last] = max(widths[last]-over, CellWidth(t.headers[last]))
	}
	return widths
}

func (t *Table) line(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == len(cells)-1 {
			b.WriteString(Truncate(cell, widths[i]))
			continue
		}
		b.WriteString(Pad(cell, widths[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

// CellWidth returns the printed width of s, ignoring ANSI escape sequences.
func CellWidth(s string) int {
	return runewidth.StringWidth(stripANSI(s))
}

// Pad right-pads s with spaces to width cells.
func Pad(s string, width int) string {
	if gap := width - CellWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// Truncate shortens plain text s to width cells with an ellipsis. Styled
// text is returned unchanged to keep its escape sequences intact.
func Truncate(s string, width int) string {
	if width <= 0 || CellWidth(s) <= width || s != stripANSI(s) {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func detectTerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return DefaultTerminalWidth
}

// stripANSI removes CSI escape sequences such as the ones lipgloss emits.
func stripANSI(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inEscape:
			if c >= 0x40 && c <= 0x7e && c != '[' {
				inEscape = false
			}
		case c == 0x1b && i+1 < len(s) && s[i+1] == '[':
			inEscape = true
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
