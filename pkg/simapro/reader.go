// pkg/simapro/reader.go
package simapro

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/issue"
)

// Reader parses SimaPro CSV exports
type Reader struct {
	fields  map[string]bool
	tracker *issue.Tracker
	logger  *zap.Logger
}

// NewReader creates a reader recognising the given process field names.
// Malformed rows are skipped and recorded on tracker.
func NewReader(fields []string, tracker *issue.Tracker, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = issue.NewTracker(logger)
	}

	known := make(map[string]bool, len(fields)+8)
	for _, f := range fields {
		known[f] = true
	}
	for _, s := range []Section{SectionProcess, SectionEnd, SectionProducts, SectionWasteTreatment,
		SectionAvoidedProducts, SectionResources, SectionMaterials, SectionElectricity,
		SectionEmissionsAir, SectionEmissionsWater, SectionEmissionsSoil, SectionFinalWaste,
		SectionNonMaterial, SectionSocial, SectionEconomic, SectionWasteToTreatment} {
		known[string(s)] = true
	}

	return &Reader{fields: known, tracker: tracker, logger: logger}
}

type readState int

const (
	stateTop readState = iota
	stateProcess
	stateBlock
)

// Read parses a whole document. Only I/O and CSV syntax errors are returned.
func (r *Reader) Read(in io.Reader, source string) (*Document, error) {
	cr := csv.NewReader(in)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	doc := &Document{}
	state := stateTop
	var (
		current  *Process
		section  string
		block    *Block
		blockKey string
	)

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read SimaPro CSV %s: %w", source, err)
		}
		line, _ := cr.FieldPos(0)
		row = trimRow(row)
		if len(row) == 0 {
			continue
		}
		head := row[0]

		switch state {
		case stateTop:
			switch {
			case strings.HasPrefix(head, "{"):
				doc.Headers = append(doc.Headers, head)
			case head == string(SectionProcess):
				current = NewProcess()
				current.Line = line
				section = ""
				state = stateProcess
			case head == BlockSystemDescription || head == BlockLiteratureReference:
				block = &Block{Kind: head}
				blockKey = ""
				state = stateBlock
			default:
				r.logger.Debug("Skipping top-level SimaPro line",
					zap.String("source", source),
					zap.Int("line", line),
					zap.String("value", head))
			}

		case stateBlock:
			switch {
			case head == string(SectionEnd):
				doc.Blocks = append(doc.Blocks, *block)
				block = nil
				state = stateTop
			case blockKey == "":
				blockKey = head
			default:
				block.Entries = append(block.Entries, Entry{Name: blockKey, Value: head})
				blockKey = ""
			}

		case stateProcess:
			if head == string(SectionEnd) {
				doc.Processes = append(doc.Processes, current)
				current = nil
				state = stateTop
				continue
			}
			if len(row) == 1 && r.fields[head] {
				section = head
				continue
			}
			if section == "" {
				continue
			}
			if Section(section).IsRows() {
				r.parseRow(current, Section(section), row, source, line)
				continue
			}
			if v, ok := current.Fields[section]; ok && v != "" {
				current.Fields[section] = v + "\n" + head
			} else {
				current.Fields[section] = head
			}
		}
	}

	if current != nil {
		r.tracker.Record(issue.Newf(issue.CategoryMalformedRow, "process is missing its End line").
			WithSource(source).WithLine(current.Line))
		doc.Processes = append(doc.Processes, current)
	}

	r.logger.Info("Read SimaPro CSV",
		zap.String("source", source),
		zap.Int("processes", len(doc.Processes)),
		zap.Int("blocks", len(doc.Blocks)))
	return doc, nil
}

func (r *Reader) parseRow(p *Process, section Section, row []string, source string, line int) {
	malformed := func(err error) {
		r.tracker.Record(issue.NewRecord(err, issue.CategoryMalformedRow).
			WithSource(source).
			WithLine(line).
			WithDataset(p.Field(FieldProcessName)).
			WithField(string(section), strings.Join(row, ";")))
	}

	if strings.TrimSpace(row[0]) == "" {
		malformed(errors.New("row has no name"))
		return
	}

	switch {
	case section == SectionProducts || section == SectionWasteTreatment:
		if len(row) < 3 {
			malformed(fmt.Errorf("product row has %d columns, want at least 3", len(row)))
			return
		}
		amount, err := ParseAmount(row[2])
		if err != nil {
			malformed(err)
			return
		}
		out := ProductRow{Name: row[0], Unit: cell(row, 1), Amount: amount}
		if section == SectionProducts {
			out.Allocation, _ = parseOptionalAmount(cell(row, 3))
			out.WasteType = cell(row, 4)
			out.Category = cell(row, 5)
			out.Comment = cell(row, 6)
			p.Products = append(p.Products, out)
			return
		}
		out.WasteType = cell(row, 3)
		out.Category = cell(row, 4)
		out.Comment = cell(row, 5)
		p.WasteTreatment = &out

	case section.IsTechnosphere():
		if len(row) < 3 {
			malformed(fmt.Errorf("technosphere row has %d columns, want at least 3", len(row)))
			return
		}
		amount, err := ParseAmount(row[2])
		if err != nil {
			malformed(err)
			return
		}
		dist, err := parseDistribution(row[3:])
		if err != nil {
			malformed(err)
			return
		}
		p.Technosphere = append(p.Technosphere, TechnosphereRow{
			Section:      section,
			Name:         row[0],
			Unit:         cell(row, 1),
			Amount:       amount,
			Distribution: dist,
			Comment:      cell(row, 7),
			Line:         line,
		})

	case section.IsBiosphere():
		if len(row) < 4 {
			malformed(fmt.Errorf("biosphere row has %d columns, want at least 4", len(row)))
			return
		}
		amount, err := ParseAmount(row[3])
		if err != nil {
			malformed(err)
			return
		}
		dist, err := parseDistribution(row[4:])
		if err != nil {
			malformed(err)
			return
		}
		p.Biosphere = append(p.Biosphere, BiosphereRow{
			Section:        section,
			Name:           row[0],
			Subcompartment: cell(row, 1),
			Unit:           cell(row, 2),
			Amount:         amount,
			Distribution:   dist,
			Comment:        cell(row, 8),
			Line:           line,
		})
	}
}

// parseDistribution reads the distribution, SD2, min and max columns
func parseDistribution(cols []string) (Distribution, error) {
	d := Distribution{Name: cell(cols, 0)}
	if d.Name == "" {
		d.Name = DistributionUndefined
	}
	var err error
	if d.SD2, err = parseOptionalAmount(cell(cols, 1)); err != nil {
		return d, err
	}
	if d.Min, err = parseOptionalAmount(cell(cols, 2)); err != nil {
		return d, err
	}
	if d.Max, err = parseOptionalAmount(cell(cols, 3)); err != nil {
		return d, err
	}
	return d, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// trimRow trims cells and drops trailing empty ones
func trimRow(row []string) []string {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}
