// pkg/simapro/writer.go
package simapro

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DateFormat is the short date format declared in the exported header
const DateFormat = "02.01.2006"

// Writer renders documents as SimaPro CSV
type Writer struct {
	fields []string
	now    func() time.Time
}

// NewWriter creates a writer emitting process fields in the given order
func NewWriter(fields []string) *Writer {
	return &Writer{fields: fields, now: time.Now}
}

// WithClock sets the clock used for header and process dates
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Rows renders a document as CSV rows
func (w *Writer) Rows(doc *Document) [][]string {
	today := w.now().Format(DateFormat)

	var rows [][]string
	for _, h := range doc.Headers {
		rows = append(rows, []string{strings.ReplaceAll(h, "today_date", today)})
	}
	rows = append(rows, []string{})

	for _, p := range doc.Processes {
		rows = append(rows, w.processRows(p, today)...)
		rows = append(rows, []string{})
	}

	for _, b := range doc.Blocks {
		rows = append(rows, []string{b.Kind}, []string{})
		for _, e := range b.Entries {
			if strings.TrimSpace(e.Value) == "" {
				continue
			}
			rows = append(rows, []string{e.Name}, []string{oneLine(e.Value)}, []string{})
		}
		rows = append(rows, []string{string(SectionEnd)}, []string{})
	}

	return rows
}

func (w *Writer) processRows(p *Process, today string) [][]string {
	var rows [][]string
	for _, field := range w.fields {
		s := Section(field)
		if s == SectionProducts && p.IsWasteTreatment() {
			continue
		}
		if s == SectionWasteTreatment && !p.IsWasteTreatment() {
			continue
		}

		rows = append(rows, []string{field})
		switch {
		case s == SectionProcess || s == SectionEnd:
			rows = append(rows, []string{})
		case s == SectionProducts:
			for _, pr := range p.Products {
				rows = append(rows, []string{
					pr.Name, pr.Unit, FormatAmount(pr.Amount), formatPercent(pr.Allocation),
					orNotDefined(pr.WasteType), pr.Category, oneLine(pr.Comment),
				})
			}
			rows = append(rows, []string{})
		case s == SectionWasteTreatment:
			pr := p.WasteTreatment
			rows = append(rows, []string{
				pr.Name, pr.Unit, FormatAmount(pr.Amount), orNotDefined(pr.WasteType), pr.Category, oneLine(pr.Comment),
			}, []string{})
		case s.IsTechnosphere():
			for _, t := range p.Technosphere {
				if t.Section != s {
					continue
				}
				rows = append(rows, append([]string{t.Name, t.Unit, FormatAmount(t.Amount)},
					append(distributionCells(t.Distribution), oneLine(t.Comment))...))
			}
			rows = append(rows, []string{})
		case s.IsBiosphere():
			for _, b := range p.Biosphere {
				if b.Section != s {
					continue
				}
				rows = append(rows, append([]string{b.Name, b.Subcompartment, b.Unit, FormatAmount(b.Amount)},
					append(distributionCells(b.Distribution), oneLine(b.Comment))...))
			}
			rows = append(rows, []string{})
		case s.IsRows():
			rows = append(rows, []string{})
		default:
			v := p.Fields[field]
			if field == FieldDate && v == "" {
				v = today
			}
			rows = append(rows, []string{oneLine(v)}, []string{})
		}
	}
	return rows
}

// Write renders a document to out
func (w *Writer) Write(out io.Writer, doc *Document) error {
	cw := csv.NewWriter(out)
	cw.Comma = ';'
	if err := cw.WriteAll(w.Rows(doc)); err != nil {
		return fmt.Errorf("failed to write SimaPro CSV: %w", err)
	}
	return nil
}

// WriteFile renders a document into dir, named after the database and the
// current date, and returns the file path
func (w *Writer) WriteFile(dir, database string, doc *Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("simapro_%s_%s.csv", database, w.now().Format("02-01-2006")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file %s: %w", path, err)
	}

	if err := w.Write(f, doc); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file %s: %w", path, err)
	}
	return path, nil
}

func distributionCells(d Distribution) []string {
	name := d.Name
	if name == "" {
		name = DistributionUndefined
	}
	return []string{name, FormatAmount(d.SD2), FormatAmount(d.Min), FormatAmount(d.Max)}
}

func formatPercent(v float64) string {
	if v == 0 {
		v = 100
	}
	return fmt.Sprintf("%g", v)
}

func orNotDefined(s string) string {
	if s == "" {
		return "not defined"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}
