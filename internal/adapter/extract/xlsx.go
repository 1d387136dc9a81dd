package extract

import (
	"fmt"
	"iter"
	"strings"

	"github.com/xuri/excelize/v2"

	"docrag/internal/domain"
)

// Spreadsheet reads .xlsx workbooks. Each sheet is one page; cells of a
// row are tab separated and rows are newline separated.
type Spreadsheet struct{}

func NewSpreadsheet() *Spreadsheet {
	return &Spreadsheet{}
}

func (Spreadsheet) Pages(path string) (iter.Seq[domain.Page], error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	pages := make([]domain.Page, 0, len(sheets))
	for i, sheet := range sheets {
		page := domain.Page{Number: i + 1}
		rows, err := f.GetRows(sheet)
		if err != nil {
			page.Err = fmt.Errorf("sheet %q: %w", sheet, err)
		} else {
			page.Text = sheetText(rows)
		}
		pages = append(pages, page)
	}

	return func(yield func(domain.Page) bool) {
		for _, p := range pages {
			if !yield(p) {
				return
			}
		}
	}, nil
}

func sheetText(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
		if line == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
