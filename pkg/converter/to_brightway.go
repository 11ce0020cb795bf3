// pkg/converter/to_brightway.go
package converter

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/model"
	"github.com/brightpath-lca/brightpath/pkg/normalizer"
	"github.com/brightpath-lca/brightpath/pkg/simapro"
	"github.com/brightpath-lca/brightpath/pkg/store"
)

// Rules applied to biosphere exchanges of SimaPro imports, as recorded on
// normalization operations
const (
	ruleInGround       = "in-ground"
	ruleCorrespondence = "biosphere-correspondence"
	ruleFallback       = "subcompartment-fallback"
)

// ReadSimapro parses a SimaPro CSV file. Malformed rows are recorded on the
// session tracker.
func (s *Session) ReadSimapro(path string) (*simapro.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SimaPro file %s: %w", path, err)
	}
	defer f.Close()

	return simapro.NewReader(s.tables.Fields, s.tracker, s.logger.Named("simapro")).Read(f, path)
}

// ToBrightway converts a SimaPro document into the activities of database,
// links and migrates them, and writes them with w. A nil writer runs the
// conversion without writing.
func (s *Session) ToBrightway(ctx context.Context, doc *simapro.Document, database string, w store.Writer, opts Options) (*Result, error) {
	res, err := s.begin(normalizer.ToBrightway.String(), database, opts)
	if err != nil {
		return nil, err
	}

	activities := s.activitiesFromDocument(doc, database)
	activities, err = s.process(ctx, res, database, activities, opts, s.prepareImport(database))
	if err != nil {
		return nil, err
	}
	res.Activities = activities

	if w != nil {
		h, err := w.Write(ctx, database, activities)
		if err != nil {
			return nil, fmt.Errorf("failed to write database %s: %w", database, err)
		}
		res.Handle = h
	}

	s.finish(res)
	return res, nil
}

func (s *Session) activitiesFromDocument(doc *simapro.Document, database string) []*model.Activity {
	activities := make([]*model.Activity, 0, len(doc.Processes))
	for _, p := range doc.Processes {
		if a := s.activityFromProcess(p, database); a != nil {
			activities = append(activities, a)
		}
	}
	return activities
}

// activityFromProcess builds an activity in SimaPro vocabulary. Rows that
// cannot form a valid exchange are skipped and recorded.
func (s *Session) activityFromProcess(p *simapro.Process, database string) *model.Activity {
	out, hasOutput := p.Output()
	title := p.Field(simapro.FieldProcessName)
	if hasOutput && out.Name != "" {
		title = out.Name
	}
	if strings.TrimSpace(title) == "" {
		s.tracker.Record(issue.Newf(issue.CategoryMalformedRow, "process has neither a name nor an output").
			WithSource(database).WithLine(p.Line))
		return nil
	}

	name, product, location := simapro.ParseProcessName(title)
	a := &model.Activity{
		Database:         database,
		Name:             name,
		ReferenceProduct: product,
		Location:         location,
		Unit:             out.Unit,
		Type:             model.ProcessActivity,
		Comment:          p.Field(simapro.FieldComment),
		Fields:           processFields(p, out),
	}
	if p.IsWasteTreatment() {
		a.Type = model.WasteTreatmentActivity
	}

	malformed := func(err error, line int) {
		s.tracker.Record(issue.NewRecord(err, issue.CategoryMalformedRow).
			WithSource(database).WithDataset(name).WithLine(line))
	}

	if hasOutput {
		amount := out.Amount
		if p.IsWasteTreatment() && amount > 0 {
			amount = -amount
		}
		prod, err := model.NewProduction(name, product, location, out.Unit, amount)
		if err != nil {
			malformed(err, p.Line)
		} else {
			prod.Uncertainty = model.Uncertainty{Loc: amount, Negative: amount < 0}
			prod.Comment = out.Comment
			a.Exchanges = append(a.Exchanges, prod)
		}
	}
	for _, co := range p.Products[min(1, len(p.Products)):] {
		s.tracker.Record(issue.Newf(issue.CategoryWarning, "co-product %q is not converted", co.Name).
			WithSource(database).WithDataset(name).WithLine(p.Line))
	}

	for _, row := range p.Technosphere {
		n, prod, loc := simapro.ParseProcessName(row.Name)
		e, err := model.NewTechnosphere(n, prod, loc, row.Unit, row.Amount)
		if err != nil {
			malformed(err, row.Line)
			continue
		}
		e.Uncertainty = simapro.FromDistribution(row.Distribution, row.Amount)
		e.Comment = row.Comment

		if s.tables.IsWasteTreatment(e.Name) {
			s.logger.Debug("Considered waste treatment, input amount made negative",
				zap.String("dataset", name),
				zap.String("exchange", e.Name))
			negate(e)
		}
		if row.Section == simapro.SectionAvoidedProducts {
			negate(e)
		}
		a.Exchanges = append(a.Exchanges, e)
	}

	for _, row := range p.Biosphere {
		categories := []string{row.Section.Compartment()}
		if row.Subcompartment != "" {
			categories = append(categories, row.Subcompartment)
		}
		e, err := model.NewBiosphere(row.Name, categories, row.Unit, row.Amount)
		if err != nil {
			malformed(err, row.Line)
			continue
		}
		e.Uncertainty = simapro.FromDistribution(row.Distribution, row.Amount)
		e.Comment = row.Comment
		a.Exchanges = append(a.Exchanges, e)
	}

	return a
}

// processFields keeps the descriptive fields of a process under lower-case
// names. The category type and the product category are joined into the
// "simapro category" path used on export.
func processFields(p *simapro.Process, out simapro.ProductRow) map[string]string {
	fields := make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		switch k {
		case simapro.FieldProcessName, simapro.FieldComment, simapro.FieldCategoryType, simapro.FieldDate:
			continue
		}
		if v = strings.TrimSpace(v); v != "" && v != Unspecified {
			fields[strings.ToLower(k)] = v
		}
	}

	if ct := p.Field(simapro.FieldCategoryType); ct != "" {
		path := ct
		if out.Category != "" {
			path += "/" + strings.ReplaceAll(out.Category, `\`, "/")
		}
		fields["simapro category"] = path
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// prepareImport applies the biosphere rules, removes zero-amount exchanges and
// empty datasets and checks what is left
func (s *Session) prepareImport(database string) prepareFunc {
	return func(activities []*model.Activity) ([]*model.Activity, []model.NormalizationOperation) {
		var ops []model.NormalizationOperation
		for _, a := range activities {
			for i, e := range a.Exchanges {
				if e.Type == model.Biosphere {
					ops = append(ops, s.formatBiosphere(a, i, e)...)
				}
			}
		}

		activities = removeEmpty(activities)
		s.checkInventories(database, activities)
		return activities, ops
	}
}

// formatBiosphere aligns a biosphere exchange with the reference flows:
// resource flows "in ground" move to that subcompartment, legacy names are
// replaced by their correspondence and, when the flow is still unknown, the
// subcompartments of its compartment are tried in order.
func (s *Session) formatBiosphere(a *model.Activity, index int, e *model.Exchange) []model.NormalizationOperation {
	var ops []model.NormalizationOperation
	record := func(field model.Field, rule, before, after string) {
		if before == after {
			return
		}
		ops = append(ops, model.NormalizationOperation{
			Dataset:       a.Name,
			ExchangeIndex: index,
			Field:         field,
			OriginalValue: before,
			NewValue:      after,
			Rule:          rule,
			NormalizedAt:  s.now(),
		})
	}

	name, categories := e.Name, model.JoinCategories(e.Categories)
	if inGroundSubcompartment(s.config.EcoinventVersion) && strings.Contains(e.Name, "in ground") {
		e.Name = strings.Replace(e.Name, ", in ground", "", 1)
		e.Categories = []string{"natural resource", "in ground"}
	}
	if strings.HasPrefix(e.Name, "Water, well") {
		e.Name = "Water, well, in ground"
	}
	record(model.FieldName, ruleInGround, name, e.Name)
	record(model.FieldCategories, ruleInGround, categories, model.JoinCategories(e.Categories))

	if !s.flows[flowKey(e.Name, e.Categories)] {
		if v, ok := s.tables.CorrespondingFlowName(e.Compartment(), e.Name); ok {
			record(model.FieldName, ruleCorrespondence, e.Name, v)
			e.Name = v
		}
	}

	if !s.flows[flowKey(e.Name, e.Categories)] {
		compartment := e.Compartment()
		for _, sub := range s.tables.SubcompartmentFallbacks[compartment] {
			candidate := []string{compartment, sub}
			if s.flows[flowKey(e.Name, candidate)] {
				record(model.FieldCategories, ruleFallback, model.JoinCategories(e.Categories), model.JoinCategories(candidate))
				e.Categories = candidate
				break
			}
		}
	}

	return ops
}

// inGroundSubcompartment reports whether an ecoinvent release keeps resource
// flows in the "in ground" subcompartment instead of in their name
func inGroundSubcompartment(version string) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return major > 3 || (major == 3 && minor >= 9)
}

// removeEmpty drops zero-amount exchanges, then datasets left without any
func removeEmpty(activities []*model.Activity) []*model.Activity {
	kept := activities[:0]
	for _, a := range activities {
		exchanges := a.Exchanges[:0]
		for _, e := range a.Exchanges {
			if e.Amount != 0 {
				exchanges = append(exchanges, e)
			}
		}
		a.Exchanges = exchanges
		if len(a.Exchanges) > 0 {
			kept = append(kept, a)
		}
	}
	return kept
}

// checkInventories records datasets without exactly one production exchange
// or whose production exchange does not describe the dataset itself
func (s *Session) checkInventories(database string, activities []*model.Activity) {
	for _, a := range activities {
		prod, err := a.Production()
		if err != nil {
			s.tracker.Record(issue.NewRecord(err, issue.CategoryInventoryCheck).
				WithSource(database).WithDataset(a.Name))
			continue
		}
		if prod.Key(model.DefaultTechnosphereFields) != a.Key(model.DefaultTechnosphereFields) {
			s.tracker.Record(issue.Newf(issue.CategoryInventoryCheck,
				"production exchange %q does not match its dataset", prod.Name).
				WithSource(database).WithDataset(a.Name))
		}
	}
}
