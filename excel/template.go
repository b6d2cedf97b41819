// Package excel generates the spreadsheet import templates: an entry sheet
// with validation rules and lookup formulas, a reference sheet the rules
// point at, and an optional instructions sheet.
package excel

import (
	"errors"
	"fmt"

	"github.com/medequip/equipment_backend/utils"
	"github.com/shopspring/decimal"
)

const maxSheetNameLength = 31

var ErrTemplateConstruction = errors.New("could not build template document")

// ReferenceEntity is one selectable row of the reference sheet. IsLeaf is
// not checked here; callers pass leaf entities only.
type ReferenceEntity struct {
	Code           string `json:"code"`
	DisplayName    string `json:"display_name"`
	Classification string `json:"classification"`
	Unit           string `json:"unit"`
	ParentLabel    string `json:"parent_label"`
	IsLeaf         bool   `json:"is_leaf"`
}

type RuleKind string

const (
	RuleList          RuleKind = "list"
	RuleReferenceList RuleKind = "reference_list"
	RuleWhole         RuleKind = "whole"
	RuleDecimal       RuleKind = "decimal"
)

type Operator string

const (
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpBetween            Operator = "between"
)

type ValidationRule struct {
	Kind RuleKind `validate:"required,oneof=list reference_list whole decimal"`
	// Choices of a RuleList.
	Choices []string `validate:"required_if=Kind list"`

	Operator  Operator `validate:"required_if=Kind whole,required_if=Kind decimal"`
	Threshold decimal.Decimal
	// Upper bound of OpBetween: a constant, or the header of a sibling
	// column compared on the same row when UpperColumn is set.
	Upper       decimal.Decimal
	UpperColumn string

	AllowBlank    bool
	ErrorTitle    string `validate:"required"`
	ErrorMessage  string `validate:"required"`
	PromptTitle   string
	PromptMessage string
}

type Lookup struct {
	// KeyColumn is the header of the entry column holding the code.
	KeyColumn   string `validate:"required"`
	ReturnIndex int    `validate:"min=2"`
}

type Column struct {
	Header   string `validate:"required"`
	Width    float64
	Required bool
	// Sequence columns are pre-filled with 1..NumberedRows.
	Sequence bool
	Rule     *ValidationRule
	Lookup   *Lookup
}

type EntrySheet struct {
	Name         string   `validate:"required,max=31"`
	Columns      []Column `validate:"required,min=1,dive"`
	NumberedRows int      `validate:"min=0"`
	// Rules and lookups cover rows 2..ValidatedRows.
	ValidatedRows int `validate:"min=2"`
	FreezeHeader  bool
}

type ReferenceColumn struct {
	Header string                        `validate:"required"`
	Width  float64
	Value  func(e ReferenceEntity) string `validate:"required"`
}

// ReferenceSheet lists one entity per row. The first column is the code.
type ReferenceSheet struct {
	Name         string            `validate:"required,max=31"`
	Columns      []ReferenceColumn `validate:"required,min=1,dive"`
	FreezeHeader bool
}

type InstructionSheet struct {
	Name  string `validate:"required,max=31"`
	Title string `validate:"required"`
	Lines []string
	Width float64
}

type TemplateConfig struct {
	Entry        EntrySheet
	Reference    *ReferenceSheet
	Instructions *InstructionSheet
}

// Document is the in-memory template, ready to encode.
type Document struct {
	Sheets []*Sheet
}

type Sheet struct {
	Name   string
	Header []string
	// Rows hold data rows starting at row 2; nil cells stay blank.
	Rows            [][]any
	RequiredColumns []int
	Widths          []float64
	Rules           []Rule
	Computed        []ComputedCell
	FreezeHeader    bool
}

// Rule is a ValidationRule bound to a cell range, with references resolved.
type Rule struct {
	Sqref string
	ValidationRule
	// Source is the drop-down range of a RuleReferenceList.
	Source string
	// UpperRef is the resolved sibling cell of a row-relative OpBetween.
	UpperRef string
}

type ComputedCell struct {
	Cell    string
	Formula string
}

func (d *Document) Sheet(name string) *Sheet {
	for _, s := range d.Sheets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (d *Document) SheetNames() []string {
	names := make([]string, 0, len(d.Sheets))
	for _, s := range d.Sheets {
		names = append(names, s.Name)
	}
	return names
}

func (s *Sheet) RequiredHeaders() []string {
	headers := make([]string, 0, len(s.RequiredColumns))
	for _, i := range s.RequiredColumns {
		headers = append(headers, s.Header[i])
	}
	return headers
}

func validateConfig(cfg TemplateConfig) error {
	if err := utils.ValidateStruct(cfg); err != nil {
		return err
	}

	names := []string{}
	if cfg.Reference != nil {
		names = append(names, cfg.Reference.Name)
	}
	if cfg.Instructions != nil {
		names = append(names, cfg.Instructions.Name)
	}
	seen := map[string]bool{cfg.Entry.Name: true}
	for _, name := range names {
		if len([]rune(name)) > maxSheetNameLength {
			return fmt.Errorf("sheet name %q is longer than %d characters", name, maxSheetNameLength)
		}
		if seen[name] {
			return fmt.Errorf("duplicate sheet name %q", name)
		}
		seen[name] = true
	}

	headers := map[string]int{}
	for i, c := range cfg.Entry.Columns {
		if _, ok := headers[c.Header]; ok {
			return fmt.Errorf("duplicate column header %q", c.Header)
		}
		headers[c.Header] = i
	}
	for _, c := range cfg.Entry.Columns {
		if c.Rule != nil && c.Rule.Kind == RuleReferenceList && cfg.Reference == nil {
			return fmt.Errorf("column %q needs a reference sheet", c.Header)
		}
		if c.Rule != nil && c.Rule.UpperColumn != "" {
			if _, ok := headers[c.Rule.UpperColumn]; !ok {
				return fmt.Errorf("column %q compares with unknown column %q", c.Header, c.Rule.UpperColumn)
			}
		}
		if c.Lookup == nil {
			continue
		}
		if cfg.Reference == nil {
			return fmt.Errorf("lookup column %q needs a reference sheet", c.Header)
		}
		if _, ok := headers[c.Lookup.KeyColumn]; !ok {
			return fmt.Errorf("lookup column %q keys on unknown column %q", c.Header, c.Lookup.KeyColumn)
		}
		if c.Lookup.ReturnIndex > len(cfg.Reference.Columns) {
			return fmt.Errorf("lookup column %q returns column %d of %d", c.Header, c.Lookup.ReturnIndex, len(cfg.Reference.Columns))
		}
	}
	return nil
}

// Build assembles the document model without touching any I/O.
func Build(entities []ReferenceEntity, cfg TemplateConfig) (*Document, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	doc := &Document{}
	entry, err := buildEntrySheet(cfg, len(entities))
	if err != nil {
		return nil, err
	}
	doc.Sheets = append(doc.Sheets, entry)

	if cfg.Reference != nil {
		doc.Sheets = append(doc.Sheets, buildReferenceSheet(*cfg.Reference, entities))
	}
	if cfg.Instructions != nil {
		doc.Sheets = append(doc.Sheets, buildInstructionSheet(*cfg.Instructions))
	}
	return doc, nil
}

func buildEntrySheet(cfg TemplateConfig, entityCount int) (*Sheet, error) {
	es := cfg.Entry
	sheet := &Sheet{
		Name:         es.Name,
		Header:       make([]string, len(es.Columns)),
		Widths:       make([]float64, len(es.Columns)),
		FreezeHeader: es.FreezeHeader,
	}

	letters := map[string]string{}
	for i, c := range es.Columns {
		sheet.Header[i] = c.Header
		sheet.Widths[i] = c.Width
		if c.Required {
			sheet.RequiredColumns = append(sheet.RequiredColumns, i)
		}
		letter, err := columnName(i)
		if err != nil {
			return nil, err
		}
		letters[c.Header] = letter
	}

	for row := 1; row <= es.NumberedRows; row++ {
		cells := make([]any, len(es.Columns))
		for i, c := range es.Columns {
			if c.Sequence {
				cells[i] = row
			}
		}
		sheet.Rows = append(sheet.Rows, cells)
	}

	for _, c := range es.Columns {
		letter := letters[c.Header]
		if c.Rule != nil {
			rule := Rule{
				Sqref:          columnRange(letter, 2, es.ValidatedRows),
				ValidationRule: *c.Rule,
			}
			if c.Rule.Kind == RuleReferenceList {
				rule.Source = ReferenceListRange(cfg.Reference.Name, entityCount)
			}
			if c.Rule.UpperColumn != "" {
				rule.UpperRef = SiblingCell(letters[c.Rule.UpperColumn], 2)
			}
			sheet.Rules = append(sheet.Rules, rule)
		}

		if c.Lookup != nil {
			last, err := columnName(len(cfg.Reference.Columns) - 1)
			if err != nil {
				return nil, err
			}
			key := letters[c.Lookup.KeyColumn]
			for row := 2; row <= es.ValidatedRows; row++ {
				sheet.Computed = append(sheet.Computed, ComputedCell{
					Cell:    SiblingCell(letter, row),
					Formula: LookupFormula(SiblingCell(key, row), cfg.Reference.Name, last, c.Lookup.ReturnIndex),
				})
			}
		}
	}
	return sheet, nil
}

func buildReferenceSheet(rs ReferenceSheet, entities []ReferenceEntity) *Sheet {
	sheet := &Sheet{
		Name:         rs.Name,
		Header:       make([]string, len(rs.Columns)),
		Widths:       make([]float64, len(rs.Columns)),
		FreezeHeader: rs.FreezeHeader,
	}
	for i, c := range rs.Columns {
		sheet.Header[i] = c.Header
		sheet.Widths[i] = c.Width
	}
	// input order is what the drop-down and lookups resolve against
	for _, e := range entities {
		cells := make([]any, len(rs.Columns))
		for i, c := range rs.Columns {
			cells[i] = c.Value(e)
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet
}

func buildInstructionSheet(is InstructionSheet) *Sheet {
	sheet := &Sheet{
		Name:   is.Name,
		Header: []string{is.Title},
	}
	if is.Width > 0 {
		sheet.Widths = []float64{is.Width}
	}
	for _, line := range is.Lines {
		sheet.Rows = append(sheet.Rows, []any{line})
	}
	return sheet
}
