// Package workbook converts spreadsheet workbooks to and from the CRM
// document. Import reconciles loosely-structured rows into normalized
// entities; export flattens the document back into the same sheet
// shape.
package workbook

import (
	"github.com/xuri/excelize/v2"
)

// Recognized sheet names.
const (
	SheetClients   = "Clients"
	SheetPartners  = "Partners"
	SheetProducts  = "Products"
	SheetProjects  = "Projects"
	SheetFollowups = "Follow-ups"
	SheetComments  = "Project Comments"
)

// Row is one spreadsheet row keyed by column header. Cells that were
// empty in the sheet are absent from the map.
type Row map[string]string

// Get returns the first non-empty value among the given headers. The
// header list expresses column-name fallbacks, e.g. "Next Date" then
// "Date".
func (r Row) Get(headers ...string) string {
	for _, h := range headers {
		if v := r[h]; v != "" {
			return v
		}
	}
	return ""
}

// sheetRows reads a sheet into header-keyed rows. A missing sheet or
// one without data rows yields nil, never an error: absent sheets are a
// recognized input, not a failure.
func sheetRows(f *excelize.File, sheet string) []Row {
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) < 2 {
		return nil
	}
	headers := rows[0]
	out := make([]Row, 0, len(rows)-1)
	for _, raw := range rows[1:] {
		row := Row{}
		for i, cell := range raw {
			if i >= len(headers) || headers[i] == "" || cell == "" {
				continue
			}
			row[headers[i]] = cell
		}
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}
