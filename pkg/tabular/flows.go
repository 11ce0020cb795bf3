// pkg/tabular/flows.go
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/model"
)

// ReadFlowsFile reads the biosphere flow table at path into flows of database
func (r *Reader) ReadFlowsFile(path, database string) ([]model.Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flow table: %w", err)
	}
	defer f.Close()

	return r.ReadFlows(f, path, database)
}

// ReadFlows parses a flow table with code, name, categories and unit columns.
// Rows missing one of them, or repeating a code, are skipped and recorded.
func (r *Reader) ReadFlows(in io.Reader, source, database string) ([]model.Flow, error) {
	cr := csv.NewReader(in)
	cr.Comma = r.comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", source, err)
	}
	h, err := parseHeader(first, FlowColumns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	var flows []model.Flow
	seen := make(map[string]bool)

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		line, _ := cr.FieldPos(0)

		f := model.Flow{
			Database:   database,
			Code:       h.get(row, ColCode),
			Name:       h.get(row, ColName),
			Categories: model.SplitCategories(h.get(row, ColCategories)),
			Unit:       h.get(row, ColUnit),
		}
		switch {
		case f.Code == "" || f.Name == "" || len(f.Categories) == 0 || f.Unit == "":
			r.tracker.Record(issue.Newf(issue.CategoryMalformedRow, "flow row is missing code, name, categories or unit").
				WithSource(source).
				WithLine(line).
				WithDataset(f.Name))
			continue
		case seen[f.Code]:
			r.tracker.Record(issue.Newf(issue.CategoryMalformedRow, "flow code %s is repeated", f.Code).
				WithSource(source).
				WithLine(line).
				WithDataset(f.Name))
			continue
		}
		seen[f.Code] = true
		flows = append(flows, f)
	}

	r.logger.Info("Read flow table",
		zap.String("source", source),
		zap.String("database", database),
		zap.Int("flows", len(flows)))
	return flows, nil
}
