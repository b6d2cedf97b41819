package excel

import (
	"fmt"

	"github.com/medequip/equipment_backend/config"
	"github.com/xuri/excelize/v2"
)

const (
	headerFill         = "#D9E1F2"
	requiredHeaderFill = "#F8CBAD"
	defaultSheet       = "Sheet1"
)

// Generate builds and encodes a template. Any failure is logged and reported
// as ErrTemplateConstruction only.
func Generate(entities []ReferenceEntity, cfg TemplateConfig) ([]byte, error) {
	logger := config.GetLogger()

	doc, err := Build(entities, cfg)
	if err != nil {
		config.LogError(logger, "excel", "Generate", "Build", cfg.Entry.Name, err)
		return nil, ErrTemplateConstruction
	}
	b, err := doc.Encode()
	if err != nil {
		config.LogError(logger, "excel", "Generate", "Encode", cfg.Entry.Name, err)
		return nil, ErrTemplateConstruction
	}
	return b, nil
}

// Encode serializes the document to XLSX bytes.
func (d *Document) Encode() ([]byte, error) {
	if len(d.Sheets) == 0 {
		return nil, fmt.Errorf("document has no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newHeaderStyles(f)
	if err != nil {
		return nil, err
	}

	keepDefault := false
	for _, s := range d.Sheets {
		if s.Name == defaultSheet {
			keepDefault = true
			continue
		}
		if _, err := f.NewSheet(s.Name); err != nil {
			return nil, err
		}
	}
	if !keepDefault {
		f.DeleteSheet(defaultSheet)
	}

	for _, s := range d.Sheets {
		if err := writeSheet(f, s, styles); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", s.Name, err)
		}
	}

	first, err := f.GetSheetIndex(d.Sheets[0].Name)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(first)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type headerStyles struct {
	normal   int
	required int
}

func newHeaderStyles(f *excelize.File) (headerStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "#000000", Style: 1},
		{Type: "top", Color: "#000000", Style: 1},
		{Type: "right", Color: "#000000", Style: 1},
		{Type: "bottom", Color: "#000000", Style: 1},
	}
	alignment := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}

	normal, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Border:    border,
		Alignment: alignment,
	})
	if err != nil {
		return headerStyles{}, err
	}
	required, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#9C0006"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{requiredHeaderFill}},
		Border:    border,
		Alignment: alignment,
	})
	if err != nil {
		return headerStyles{}, err
	}
	return headerStyles{normal: normal, required: required}, nil
}

func writeSheet(f *excelize.File, s *Sheet, styles headerStyles) error {
	required := make(map[int]bool, len(s.RequiredColumns))
	for _, i := range s.RequiredColumns {
		required[i] = true
	}

	for i, h := range s.Header {
		cell, err := cellName(i, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.Name, cell, h); err != nil {
			return err
		}
		style := styles.normal
		if required[i] {
			style = styles.required
		}
		if err := f.SetCellStyle(s.Name, cell, cell, style); err != nil {
			return err
		}
	}

	for i, w := range s.Widths {
		if w <= 0 {
			continue
		}
		col, err := columnName(i)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.Name, col, col, w); err != nil {
			return err
		}
	}

	for r, cells := range s.Rows {
		for i, v := range cells {
			if v == nil {
				continue
			}
			cell, err := cellName(i, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(s.Name, cell, v); err != nil {
				return err
			}
		}
	}

	for _, c := range s.Computed {
		if err := f.SetCellFormula(s.Name, c.Cell, c.Formula); err != nil {
			return err
		}
	}

	for _, rule := range s.Rules {
		dv, err := dataValidation(rule)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.Sqref, err)
		}
		if err := f.AddDataValidation(s.Name, dv); err != nil {
			return err
		}
	}

	if s.FreezeHeader {
		if err := f.SetPanes(s.Name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}
	return nil
}

func dataValidation(rule Rule) (*excelize.DataValidation, error) {
	dv := excelize.NewDataValidation(rule.AllowBlank)
	dv.Sqref = rule.Sqref

	switch rule.Kind {
	case RuleList:
		if err := dv.SetDropList(rule.Choices); err != nil {
			return nil, err
		}
	case RuleReferenceList:
		dv.SetSqrefDropList(rule.Source)
	case RuleWhole:
		lower, upper := wholeBounds(rule)
		if err := dv.SetRange(lower, upper, excelize.DataValidationTypeWhole, operator(rule.Operator)); err != nil {
			return nil, err
		}
	case RuleDecimal:
		lower, upper := decimalBounds(rule)
		if err := dv.SetRange(lower, upper, excelize.DataValidationTypeDecimal, operator(rule.Operator)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
	if rule.Operator != OpBetween {
		dv.Formula2 = ""
	}

	dv.SetError(excelize.DataValidationErrorStyleStop, rule.ErrorTitle, rule.ErrorMessage)
	if rule.PromptTitle != "" || rule.PromptMessage != "" {
		dv.SetInput(rule.PromptTitle, rule.PromptMessage)
	}
	return dv, nil
}

func wholeBounds(rule Rule) (any, any) {
	lower := int(rule.Threshold.IntPart())
	if rule.Operator != OpBetween {
		return lower, lower
	}
	if rule.UpperRef != "" {
		return lower, rule.UpperRef
	}
	return lower, int(rule.Upper.IntPart())
}

func decimalBounds(rule Rule) (any, any) {
	lower := rule.Threshold.InexactFloat64()
	if rule.Operator != OpBetween {
		return lower, lower
	}
	if rule.UpperRef != "" {
		return lower, rule.UpperRef
	}
	return lower, rule.Upper.InexactFloat64()
}

func operator(op Operator) excelize.DataValidationOperator {
	switch op {
	case OpGreaterThan:
		return excelize.DataValidationOperatorGreaterThan
	case OpGreaterThanOrEqual:
		return excelize.DataValidationOperatorGreaterThanOrEqual
	case OpLessThanOrEqual:
		return excelize.DataValidationOperatorLessThanOrEqual
	}
	return excelize.DataValidationOperatorBetween
}
