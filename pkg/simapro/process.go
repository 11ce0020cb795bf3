// pkg/simapro/process.go
package simapro

import "strings"

// Section names a block of a SimaPro process
type Section string

const (
	SectionProcess          Section = "Process"
	SectionEnd              Section = "End"
	SectionProducts         Section = "Products"
	SectionWasteTreatment   Section = "Waste treatment"
	SectionAvoidedProducts  Section = "Avoided products"
	SectionResources        Section = "Resources"
	SectionMaterials        Section = "Materials/fuels"
	SectionElectricity      Section = "Electricity/heat"
	SectionEmissionsAir     Section = "Emissions to air"
	SectionEmissionsWater   Section = "Emissions to water"
	SectionEmissionsSoil    Section = "Emissions to soil"
	SectionFinalWaste       Section = "Final waste flows"
	SectionNonMaterial      Section = "Non material emissions"
	SectionSocial           Section = "Social issues"
	SectionEconomic         Section = "Economic issues"
	SectionWasteToTreatment Section = "Waste to treatment"
	SectionInputParameters  Section = "Input parameters"
	SectionCalcParameters   Section = "Calculated parameters"
)

// Single-value process fields read and written by the converters
const (
	FieldProcessName          = "Process name"
	FieldCategoryType         = "Category type"
	FieldType                 = "Type"
	FieldGeography            = "Geography"
	FieldComment              = "Comment"
	FieldDate                 = "Date"
	FieldInfrastructure       = "Infrastructure"
	FieldSystemDescription    = "System description"
	FieldLiteratureReferences = "Literature references"
)

// Top-level blocks outside processes
const (
	BlockSystemDescription   = "System description"
	BlockLiteratureReference = "Literature reference"
)

var technosphereSections = map[Section]bool{
	SectionAvoidedProducts:  true,
	SectionMaterials:        true,
	SectionElectricity:      true,
	SectionWasteToTreatment: true,
}

var compartments = map[Section]string{
	SectionResources:      "natural resource",
	SectionEmissionsAir:   "air",
	SectionEmissionsWater: "water",
	SectionEmissionsSoil:  "soil",
}

// ignoredSections carry rows the converters do not model
var ignoredSections = map[Section]bool{
	SectionFinalWaste:      true,
	SectionNonMaterial:     true,
	SectionSocial:          true,
	SectionEconomic:        true,
	SectionInputParameters: true,
	SectionCalcParameters:  true,
}

// IsTechnosphere reports whether rows of the section are technosphere inputs
func (s Section) IsTechnosphere() bool {
	return technosphereSections[s]
}

// IsBiosphere reports whether rows of the section are elementary flows
func (s Section) IsBiosphere() bool {
	_, ok := compartments[s]
	return ok
}

// IsRows reports whether the section holds exchange rows rather than a value
func (s Section) IsRows() bool {
	return s == SectionProducts || s == SectionWasteTreatment ||
		s.IsTechnosphere() || s.IsBiosphere() || ignoredSections[s]
}

// Compartment returns the Brightway compartment of a biosphere section
func (s Section) Compartment() string {
	return compartments[s]
}

// SectionForCompartment returns the biosphere section for a compartment
func SectionForCompartment(compartment string) (Section, bool) {
	for s, c := range compartments {
		if c == strings.ToLower(compartment) {
			return s, true
		}
	}
	return "", false
}

// ProductRow is an output of a process (Products or Waste treatment)
type ProductRow struct {
	Name       string
	Unit       string
	Amount     float64
	Allocation float64 // Percent, Products only
	WasteType  string
	Category   string
	Comment    string
}

// TechnosphereRow is an input from another process
type TechnosphereRow struct {
	Section      Section
	Name         string
	Unit         string
	Amount       float64
	Distribution Distribution
	Comment      string
	Line         int
}

// BiosphereRow is an exchange with the environment
type BiosphereRow struct {
	Section        Section
	Name           string
	Subcompartment string
	Unit           string
	Amount         float64
	Distribution   Distribution
	Comment        string
	Line           int
}

// Process is one Process ... End block
type Process struct {
	Fields         map[string]string
	Products       []ProductRow
	WasteTreatment *ProductRow
	Technosphere   []TechnosphereRow
	Biosphere      []BiosphereRow
	Line           int
}

// NewProcess creates an empty process
func NewProcess() *Process {
	return &Process{Fields: make(map[string]string)}
}

// Field returns a single-value field
func (p *Process) Field(name string) string {
	return p.Fields[name]
}

// IsWasteTreatment reports whether the process is a waste treatment
func (p *Process) IsWasteTreatment() bool {
	return p.WasteTreatment != nil
}

// Output returns the reference output of the process
func (p *Process) Output() (ProductRow, bool) {
	if p.WasteTreatment != nil {
		return *p.WasteTreatment, true
	}
	if len(p.Products) > 0 {
		return p.Products[0], true
	}
	return ProductRow{}, false
}

// Entry is one name/value pair of a top-level block
type Entry struct {
	Name  string
	Value string
}

// Block is a top-level System description or Literature reference
type Block struct {
	Kind    string
	Entries []Entry
}

// Document is a parsed SimaPro CSV file
type Document struct {
	Headers   []string
	Processes []*Process
	Blocks    []Block
}
