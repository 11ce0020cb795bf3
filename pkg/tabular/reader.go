// pkg/tabular/reader.go
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Reader loads Brightway-style inventory tables. Each row is one exchange;
// rows sharing the activity columns belong to the same activity.
type Reader struct {
	tracker *issue.Tracker
	logger  *zap.Logger
	comma   rune
}

// NewReader creates a reader recording skipped rows on tracker
func NewReader(tracker *issue.Tracker, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = issue.NewTracker(logger)
	}
	return &Reader{tracker: tracker, logger: logger, comma: ','}
}

// WithComma sets the field delimiter
func (r *Reader) WithComma(c rune) *Reader {
	r.comma = c
	return r
}

// ReadFile reads the table at path into activities of database
func (r *Reader) ReadFile(path, database string) ([]*model.Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory table: %w", err)
	}
	defer f.Close()

	return r.Read(f, path, database)
}

// Read parses a table into activities of database, in first-seen order.
// Malformed rows are skipped and recorded; activities without a production
// row get one built from their identity.
func (r *Reader) Read(in io.Reader, source, database string) ([]*model.Activity, error) {
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
	h, err := parseHeader(first, requiredColumns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	extra := h.extraActivityFields()
	sort.Strings(extra)

	var activities []*model.Activity
	byKey := make(map[model.Key]*model.Activity)

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		line, _ := cr.FieldPos(0)

		act := &model.Activity{
			Database:         database,
			Name:             h.get(row, ColActivity),
			ReferenceProduct: h.get(row, ColActivityProduct),
			Location:         h.get(row, ColActivityLocation),
			Unit:             h.get(row, ColActivityUnit),
			Type:             model.ProcessActivity,
		}
		key := act.Key([]model.Field{model.FieldName, model.FieldReferenceProduct, model.FieldLocation, model.FieldUnit})

		exc, err := r.parseExchange(h, row, act)
		if err != nil {
			r.tracker.Record(issue.NewRecord(err, issue.CategoryMalformedRow).
				WithSource(source).
				WithLine(line).
				WithDataset(act.Name))
			continue
		}

		existing, ok := byKey[key]
		if !ok {
			if act.Name == "" {
				r.tracker.Record(issue.Newf(issue.CategoryMalformedRow, "row has no activity").
					WithSource(source).
					WithLine(line))
				continue
			}
			act.Fields = make(map[string]string)
			for _, col := range extra {
				if v := h.get(row, col); v != "" {
					act.Fields[col[len(activityFieldPrefix):]] = v
				}
			}
			byKey[key] = act
			activities = append(activities, act)
			existing = act
		}
		existing.Exchanges = append(existing.Exchanges, exc)
	}

	for _, act := range activities {
		r.completeProduction(act, source)
	}

	r.logger.Info("Read inventory table",
		zap.String("source", source),
		zap.String("database", database),
		zap.Int("activities", len(activities)))
	return activities, nil
}

func (r *Reader) parseExchange(h header, row []string, act *model.Activity) (*model.Exchange, error) {
	typ, err := model.ParseExchangeType(h.get(row, ColType))
	if err != nil {
		return nil, err
	}
	amount, err := strconv.ParseFloat(h.get(row, ColAmount), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", h.get(row, ColAmount))
	}

	name := h.get(row, ColName)
	product := h.get(row, ColReferenceProduct)
	location := h.get(row, ColLocation)
	unit := h.get(row, ColUnit)

	var e *model.Exchange
	switch typ {
	case model.Production:
		e, err = model.NewProduction(or(name, act.Name), or(product, act.ReferenceProduct),
			or(location, act.Location), or(unit, act.Unit), amount)
	case model.Technosphere:
		e, err = model.NewTechnosphere(name, product, location, unit, amount)
	case model.Biosphere:
		e, err = model.NewBiosphere(name, model.SplitCategories(h.get(row, ColCategories)), unit, amount)
	}
	if err != nil {
		return nil, err
	}

	if e.Uncertainty, err = parseUncertainty(h, row); err != nil {
		return nil, err
	}
	e.Comment = h.get(row, ColComment)
	return e, nil
}

// completeProduction adds a missing production exchange and marks waste
// treatments, whose reference output is negative
func (r *Reader) completeProduction(act *model.Activity, source string) {
	prod, err := act.Production()
	if errors.Is(err, model.ErrNoProduction) {
		prod, err = model.NewProduction(act.Name, act.ReferenceProduct, act.Location, act.Unit, 1)
		if err != nil {
			r.tracker.Record(issue.NewRecord(err, issue.CategoryInventoryCheck).
				WithSource(source).
				WithDataset(act.Name))
			return
		}
		act.Exchanges = append([]*model.Exchange{prod}, act.Exchanges...)
		r.tracker.Record(issue.Newf(issue.CategoryWarning, "no production exchange, assuming 1 %s", act.Unit).
			WithSource(source).
			WithDataset(act.Name))
	} else if err != nil {
		r.tracker.Record(issue.NewRecord(err, issue.CategoryInventoryCheck).
			WithSource(source).
			WithDataset(act.Name))
		return
	}
	if prod.Amount < 0 {
		act.Type = model.WasteTreatmentActivity
	}
}

func parseUncertainty(h header, row []string) (model.Uncertainty, error) {
	var u model.Uncertainty
	if s := h.get(row, ColUncertaintyType); s != "" {
		t, err := strconv.Atoi(s)
		if err != nil {
			return u, fmt.Errorf("invalid uncertainty type %q", s)
		}
		u.Type = model.UncertaintyType(t)
	}
	for _, c := range []struct {
		column string
		dst    *float64
	}{
		{ColLoc, &u.Loc},
		{ColScale, &u.Scale},
		{ColMinimum, &u.Minimum},
		{ColMaximum, &u.Maximum},
	} {
		s := h.get(row, c.column)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return u, fmt.Errorf("invalid %s %q", c.column, s)
		}
		*c.dst = v
	}
	return u, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
