// pkg/converter/to_simapro.go
package converter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/model"
	"github.com/brightpath-lca/brightpath/pkg/normalizer"
	"github.com/brightpath-lca/brightpath/pkg/simapro"
)

// describedFields are written as Unspecified when neither the dataset nor
// the defaults give them a value
var describedFields = map[string]bool{
	"Time period":           true,
	"Record":                true,
	"Generator":             true,
	"Cut off rules":         true,
	"Capital goods":         true,
	"Technology":            true,
	"Representativeness":    true,
	"Boundary with nature":  true,
	"Infrastructure":        true,
	"External documents":    true,
	"System description":    true,
	"Allocation rules":      true,
	"Literature references": true,
	"Collection method":     true,
	"Data treatment":        true,
	"Verification":          true,
}

// ToSimapro links an inventory, renders it as SimaPro processes and writes
// the export file into the configured directory. Inventories with exchanges
// missing mandatory fields are rejected before anything is linked.
func (s *Session) ToSimapro(ctx context.Context, activities []*model.Activity, opts Options) (*Result, error) {
	database := ""
	if len(activities) > 0 {
		database = activities[0].Database
	}

	res, err := s.begin(normalizer.ToSimapro.String(), database, opts)
	if err != nil {
		return nil, err
	}
	if err := s.checkMandatoryFields(database, activities); err != nil {
		return nil, err
	}

	activities, err = s.process(ctx, res, database, activities, opts, nil)
	if err != nil {
		return nil, err
	}
	res.Activities = activities

	path, err := simapro.NewWriter(s.tables.Fields).
		WithClock(s.now).
		WriteFile(s.config.ExportDir, s.config.ExportName, s.Document(activities))
	if err != nil {
		s.tracker.Record(issue.NewRecord(err, issue.CategoryIO).WithSource(s.config.ExportDir))
		return nil, err
	}
	res.Path = path

	s.finish(res)
	return res, nil
}

func (s *Session) checkMandatoryFields(database string, activities []*model.Activity) error {
	var errs []error
	for _, a := range activities {
		if err := a.Validate(); err != nil {
			s.tracker.Record(issue.NewRecord(err, issue.CategoryInventoryCheck).
				WithSource(database).WithDataset(a.Name))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d datasets cannot be exported: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Document renders activities as a SimaPro document, followed by the
// system descriptions and literature references of the metadata
func (s *Session) Document(activities []*model.Activity) *simapro.Document {
	doc := &simapro.Document{Headers: s.tables.Headers}
	for _, a := range activities {
		doc.Processes = append(doc.Processes, s.processFor(a))
	}

	if m := s.config.Metadata; m != nil {
		for _, sd := range m.SystemDescriptions {
			doc.Blocks = append(doc.Blocks, simapro.Block{
				Kind: simapro.BlockSystemDescription,
				Entries: []simapro.Entry{
					{Name: "Name", Value: sd.Name},
					{Name: "Category", Value: sd.Category},
					{Name: "Description", Value: sd.Description},
					{Name: "Cut-off rules", Value: sd.CutOffRules},
					{Name: "Allocation rules", Value: sd.Allocation},
				},
			})
		}
		for _, lr := range m.LiteratureReferences {
			doc.Blocks = append(doc.Blocks, simapro.Block{
				Kind: simapro.BlockLiteratureReference,
				Entries: []simapro.Entry{
					{Name: "Name", Value: lr.Name},
					{Name: "Documentation link", Value: lr.Documentation},
					{Name: "Category", Value: lr.Category},
					{Name: "Description", Value: lr.Description},
				},
			})
		}
	}
	return doc
}

func (s *Session) processFor(a *model.Activity) *simapro.Process {
	p := simapro.NewProcess()
	name := s.processName(a.Name, a.ReferenceProduct, a.Location)
	category := s.category(a)
	waste := s.isWasteTreatment(a)

	for _, field := range s.tables.Fields {
		if simapro.Section(field).IsRows() || field == string(simapro.SectionProcess) || field == string(simapro.SectionEnd) {
			continue
		}
		if v := s.fieldValue(a, field, name, category); v != "" {
			p.Fields[field] = v
		}
	}

	if prod, err := a.Production(); err == nil {
		row := simapro.ProductRow{
			Name:       name,
			Unit:       s.unit(prod.Unit),
			Amount:     prod.Amount,
			Allocation: 100,
			Category:   subcategory(category, categoryType(category)),
			Comment:    prod.Comment,
		}
		if waste {
			row.Amount = math.Abs(row.Amount)
			p.WasteTreatment = &row
		} else {
			p.Products = []simapro.ProductRow{row}
		}
	}

	for _, e := range a.ExchangesOf(model.Technosphere) {
		if s.tables.IsBlacklisted(e.Name) {
			continue
		}

		section := simapro.SectionMaterials
		amount, d := e.Amount, simapro.ToDistribution(e.Uncertainty)
		switch {
		case s.tables.IsWasteTreatment(e.Name):
			section = simapro.SectionWasteToTreatment
			amount, d = positive(amount, d)
		case energyUnits[e.Unit]:
			section = simapro.SectionElectricity
		}
		if waste {
			amount, d = positive(amount, d)
		}

		p.Technosphere = append(p.Technosphere, simapro.TechnosphereRow{
			Section:      section,
			Name:         s.processName(e.Name, e.ReferenceProduct, e.Location),
			Unit:         s.unit(e.Unit),
			Amount:       amount,
			Distribution: d,
			Comment:      e.Comment,
		})
	}

	for _, e := range a.ExchangesOf(model.Biosphere) {
		if s.tables.IsBlacklisted(e.Name) {
			continue
		}
		section, ok := simapro.SectionForCompartment(e.Compartment())
		if !ok {
			s.tracker.Record(issue.Newf(issue.CategoryWarning, "biosphere exchange %q has unknown compartment %q",
				e.Name, e.Compartment()).WithSource(a.Database).WithDataset(a.Name))
			continue
		}

		unit, amount, d := e.Unit, e.Amount, simapro.ToDistribution(e.Uncertainty)
		if isWater(e) {
			unit, amount, d = "kilogram", amount*1000, scaled(d, 1000)
		}

		sub := e.Subcompartment()
		if sub != "" {
			sub = s.outbound.Field(normalizer.RoleCategory, sub)
		}

		p.Biosphere = append(p.Biosphere, simapro.BiosphereRow{
			Section:        section,
			Name:           s.outbound.BiosphereName(e.Name, e.Location, a.Location),
			Subcompartment: sub,
			Unit:           s.unit(unit),
			Amount:         amount,
			Distribution:   d,
			Comment:        e.Comment,
		})
	}

	return p
}

// fieldValue picks a process field from the dataset, then the defaults,
// then the metadata document
func (s *Session) fieldValue(a *model.Activity, field, name, category string) string {
	key := strings.ToLower(field)
	switch field {
	case simapro.FieldProcessName:
		return name
	case simapro.FieldCategoryType:
		return categoryType(category)
	case simapro.FieldGeography:
		return a.Location
	case simapro.FieldDate:
		return a.Fields["date"]
	case simapro.FieldComment:
		comment := a.Comment
		if src := a.Fields["source"]; src != "" {
			comment = strings.TrimSpace(comment + " Source: " + src)
		}
		return comment
	}

	if v := a.Fields[key]; v != "" {
		return v
	}
	if v := s.defaultValue(key); v != "" {
		return v
	}
	if m := s.config.Metadata; m != nil {
		if field == simapro.FieldSystemDescription && len(m.SystemDescriptions) > 0 {
			return m.SystemDescriptions[0].Name
		}
		if field == simapro.FieldLiteratureReferences && len(m.LiteratureReferences) > 0 {
			return m.LiteratureReferences[0].Name
		}
	}
	if describedFields[field] {
		return Unspecified
	}
	return ""
}

// processName returns the known SimaPro name of an ecoinvent activity or
// builds one from its name, reference product and location
func (s *Session) processName(name, product, location string) string {
	if location == "" {
		location = s.defaultValue("location")
	}
	if v, ok := s.tables.SimaproProcessName(name, location); ok {
		return v
	}
	return simapro.FormatProcessName(name, product, location)
}

func (s *Session) category(a *model.Activity) string {
	if v := a.Fields["simapro category"]; v != "" {
		return v
	}
	return s.defaultValue("simapro category")
}

func (s *Session) isWasteTreatment(a *model.Activity) bool {
	switch a.Type {
	case model.WasteTreatmentActivity:
		return true
	case model.ProcessActivity:
		return false
	default:
		return s.tables.IsWasteTreatment(a.Name)
	}
}

func (s *Session) unit(u string) string {
	return s.outbound.Field(normalizer.RoleUnit, u)
}
