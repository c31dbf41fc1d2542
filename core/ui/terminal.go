// Package ui renders CLI output: tables, solution summaries, run diffs and
// progress for slow phases. All color goes through a Writer, so a Writer
// built with noColor emits plain text.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Verbosity levels accepted by SetVerbosity
const (
	Quiet   = 0
	Normal  = 1
	Verbose = 2
)

// role names what a piece of text means; the palette decides how it looks
type role int

const (
	roleStrong role = iota
	roleTitle
	roleMuted
	roleGood
	roleBad
	roleWarn
	roleNote
	roleAccent
)

const sgrReset = "\033[0m"

var palette = map[role]string{
	roleStrong: "\033[1m",
	roleTitle:  "\033[1;36m",
	roleMuted:  "\033[2m",
	roleGood:   "\033[32m",
	roleBad:    "\033[31m",
	roleWarn:   "\033[33m",
	roleNote:   "\033[34m",
	roleAccent: "\033[36m",
}

// Writer is the UI output destination
type Writer struct {
	out       io.Writer
	noColor   bool
	verbosity int
}

// NewWriter creates a UI writer; a nil out writes to stdout
func NewWriter(out io.Writer, noColor bool) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{out: out, noColor: noColor, verbosity: Normal}
}

// SetVerbosity sets output verbosity (Quiet, Normal or Verbose)
func (w *Writer) SetVerbosity(level int) {
	w.verbosity = level
}

func (w *Writer) paint(r role, text string) string {
	if w.noColor || text == "" {
		return text
	}
	return palette[r] + text + sgrReset
}

// Println writes one formatted line
func (w *Writer) Println(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Header prints a section title underlined to its width
func (w *Writer) Header(title string) {
	w.Println("")
	w.Println("%s", w.paint(roleTitle, title))
	w.Println("%s", w.paint(roleMuted, strings.Repeat("─", runeLen(title))))
}

// SubHeader prints a subsection title
func (w *Writer) SubHeader(title string) {
	w.Println("%s", w.paint(roleStrong, title))
}

func (w *Writer) status(r role, icon, format string, args []interface{}) {
	w.Println("%s %s", w.paint(r, icon), fmt.Sprintf(format, args...))
}

// Success prints a success line
func (w *Writer) Success(format string, args ...interface{}) {
	w.status(roleGood, "✓", format, args)
}

// Warning prints a warning line
func (w *Writer) Warning(format string, args ...interface{}) {
	w.status(roleWarn, "!", format, args)
}

// Error prints an error line
func (w *Writer) Error(format string, args ...interface{}) {
	w.status(roleBad, "✗", format, args)
}

// Info prints a note unless the writer is quiet
func (w *Writer) Info(format string, args ...interface{}) {
	if w.verbosity >= Normal {
		w.status(roleNote, "·", format, args)
	}
}

// Debug prints a dimmed line in verbose mode only
func (w *Writer) Debug(format string, args ...interface{}) {
	if w.verbosity >= Verbose {
		w.Println("  %s", w.paint(roleMuted, fmt.Sprintf(format, args...)))
	}
}

// fields prints aligned "label  value" lines
func (w *Writer) fields(rows [][2]string) {
	width := 0
	for _, r := range rows {
		if n := runeLen(r[0]); n > width {
			width = n
		}
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		label := r[0] + strings.Repeat(" ", width-runeLen(r[0]))
		w.Println("  %s  %s", w.paint(roleMuted, label), r[1])
	}
}

func runeLen(s string) int {
	return len([]rune(s))
}

// Table collects rows and renders them with padded columns
type Table struct {
	w       *Writer
	headers []string
	rows    [][]string
	widths  []int
	right   []bool
}

// NewTable creates a table with the given column headers
func (w *Writer) NewTable(headers ...string) *Table {
	t := &Table{
		w:       w,
		headers: headers,
		widths:  make([]int, len(headers)),
		right:   make([]bool, len(headers)),
	}
	t.measure(headers)
	return t
}

// AlignRight right-aligns the given 0-based columns
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		if c >= 0 && c < len(t.right) {
			t.right[c] = true
		}
	}
	return t
}

// AddRow appends a row; missing cells are blank, extra cells are dropped
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.measure(row)
	t.rows = append(t.rows, row)
}

func (t *Table) measure(cells []string) {
	for i, c := range cells {
		if n := runeLen(c); n > t.widths[i] {
			t.widths[i] = n
		}
	}
}

// Render prints the header, a rule and every row
func (t *Table) Render() {
	t.w.Println("%s", t.w.paint(roleStrong, t.format(t.headers)))

	rule := make([]string, len(t.widths))
	for i, n := range t.widths {
		rule[i] = strings.Repeat("─", n)
	}
	t.w.Println("%s", t.w.paint(roleMuted, strings.Join(rule, "─┼─")))

	for _, row := range t.rows {
		t.w.Println("%s", t.format(row))
	}
}

func (t *Table) format(cells []string) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteString(" │ ")
		}
		pad := strings.Repeat(" ", t.widths[i]-runeLen(c))
		if t.right[i] {
			b.WriteString(pad + c)
		} else {
			b.WriteString(c + pad)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// SolutionSummary renders the totals of an optimization
type SolutionSummary struct {
	w           *Writer
	TotalCost   string
	Budget      string
	Remaining   string
	Preference  string
	Approximate bool
	Catalogue   string
	Duration    time.Duration
}

// NewSolutionSummary creates a solution summary
func (w *Writer) NewSolutionSummary() *SolutionSummary {
	return &SolutionSummary{w: w}
}

// Render prints the summary block
func (s *SolutionSummary) Render() {
	s.w.Header("Summary")

	var solved string
	if s.Duration > 0 {
		solved = formatDuration(s.Duration)
	}
	s.w.fields([][2]string{
		{"Total cost", s.w.paint(roleGood, s.TotalCost)},
		{"Budget", s.Budget},
		{"Remaining", s.Remaining},
		{"Preference", s.w.paint(roleAccent, s.Preference)},
		{"Catalogue", s.Catalogue},
		{"Solved in", solved},
	})

	if s.Approximate {
		s.w.Println("")
		s.w.Warning("costs were coarsened to fit the solver table; the result may not be optimal")
	}
}

// Spinner animates a label until stopped
type Spinner struct {
	w       *Writer
	label   string
	frames  []string
	started time.Time
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewSpinner creates a spinner
func (w *Writer) NewSpinner(label string) *Spinner {
	return &Spinner{
		w:      w,
		label:  label,
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start animates the spinner in the background
func (s *Spinner) Start() {
	s.started = time.Now()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				frame := s.frames[i%len(s.frames)]
				fmt.Fprintf(s.w.out, "\r%s %s", s.w.paint(roleAccent, frame), s.label)
			}
		}
	}()
}

// Stop ends the animation and prints the outcome; later calls do nothing
func (s *Spinner) Stop(success bool) {
	s.once.Do(func() {
		close(s.stop)
		<-s.done

		icon := s.w.paint(roleGood, "✓")
		if !success {
			icon = s.w.paint(roleBad, "✗")
		}
		elapsed := s.w.paint(roleMuted, "("+formatDuration(time.Since(s.started))+")")
		fmt.Fprintf(s.w.out, "\r%s %s %s\n", icon, s.label, elapsed)
	})
}

// AssignmentDiff shows how the assignments of two runs differ
type AssignmentDiff struct {
	w           *Writer
	Added       []DiffItem
	Removed     []DiffItem
	Changed     []DiffItem
	TotalChange string
	IsIncrease  bool
}

// DiffItem is one constituent's level before and after
type DiffItem struct {
	Constituent string
	OldLevel    int
	NewLevel    int
}

// NewAssignmentDiff creates a diff view
func (w *Writer) NewAssignmentDiff() *AssignmentDiff {
	return &AssignmentDiff{w: w}
}

// Empty reports whether the assignments are identical
func (d *AssignmentDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Render prints the diff
func (d *AssignmentDiff) Render() {
	d.w.Header("Assignment Changes")

	d.section("Added", d.Added, func(it DiffItem) string {
		return fmt.Sprintf("%s %s: level %d", d.w.paint(roleGood, "+"), it.Constituent, it.NewLevel)
	})
	d.section("Removed", d.Removed, func(it DiffItem) string {
		return fmt.Sprintf("%s %s: level %d", d.w.paint(roleBad, "-"), it.Constituent, it.OldLevel)
	})
	d.section("Changed", d.Changed, func(it DiffItem) string {
		r := roleBad
		if it.NewLevel > it.OldLevel {
			r = roleGood
		}
		return fmt.Sprintf("  %s: %d %s %s", it.Constituent, it.OldLevel,
			d.w.paint(roleWarn, "→"), d.w.paint(r, fmt.Sprintf("%d", it.NewLevel)))
	})

	if d.Empty() {
		d.w.Println("  %s", d.w.paint(roleMuted, "no level changes"))
	}

	change, r := d.TotalChange, roleGood
	if d.IsIncrease {
		change, r = "+"+change, roleBad
	}
	d.w.Println("%s", d.w.paint(roleMuted, strings.Repeat("─", 40)))
	d.w.Println("%s%s", d.w.paint(roleStrong, "Cost Change: "), d.w.paint(r, change))
}

func (d *AssignmentDiff) section(title string, items []DiffItem, line func(DiffItem) string) {
	if len(items) == 0 {
		return
	}
	d.w.SubHeader(fmt.Sprintf("%s (%d)", title, len(items)))
	for _, it := range items {
		d.w.Println("%s", line(it))
	}
	d.w.Println("")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
