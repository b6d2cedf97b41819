package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Every formula string written into a template is built here.

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// ReferenceListRange is the drop-down source covering the code column of the
// reference sheet. An empty reference sheet still yields a one-cell range.
func ReferenceListRange(sheet string, count int) string {
	last := count + 1
	if last < 2 {
		last = 2
	}
	return fmt.Sprintf("%s!$A$2:$A$%d", quoteSheet(sheet), last)
}

// LookupFormula returns the value at index of the reference row whose code
// equals keyCell, or blank when keyCell is blank or unknown.
func LookupFormula(keyCell, sheet, lastColumn string, index int) string {
	return fmt.Sprintf(`IF(%s="","",IFERROR(VLOOKUP(%s,%s!$A:$%s,%d,FALSE),""))`,
		keyCell, keyCell, quoteSheet(sheet), lastColumn, index)
}

// SiblingCell is a row-relative reference used as a validation bound, so
// each row is compared with its own sibling.
func SiblingCell(column string, row int) string {
	return fmt.Sprintf("%s%d", column, row)
}

func columnRange(column string, fromRow, toRow int) string {
	return fmt.Sprintf("%s%d:%s%d", column, fromRow, column, toRow)
}

func columnName(index int) (string, error) {
	return excelize.ColumnNumberToName(index + 1)
}

func cellName(index, row int) (string, error) {
	return excelize.CoordinatesToCellName(index+1, row)
}
