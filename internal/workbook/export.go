package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

// Export writes the document as an xlsx workbook in the same sheet and
// column shape Import recognizes. Contact lists flatten to one row per
// contact; a client or partner without contacts still gets a
// placeholder row so the entity round-trips.
func Export(doc crm.Document, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, SheetClients,
		[]string{"Client ID", "Client Name", "Country", "Contact Person", "Email", "Phone"},
		clientRows(doc.Clients)); err != nil {
		return err
	}
	if err := writeSheet(f, SheetPartners,
		[]string{"Partner ID", "Partner Name", "Contact Person", "Email", "Phone"},
		partnerRows(doc.Partners)); err != nil {
		return err
	}
	if err := writeSheet(f, SheetProducts,
		[]string{"Partner", "Product"},
		productRows(doc.Products)); err != nil {
		return err
	}
	if err := writeSheet(f, SheetProjects,
		[]string{"Project ID", "Project Name", "Client ID", "Partner ID", "Product", "Start Date", "Status"},
		projectRows(doc.Projects)); err != nil {
		return err
	}
	if err := writeSheet(f, SheetFollowups,
		[]string{"Follow-Up ID", "Client ID", "Project ID", "Partner ID", "Product", "Next Date", "Action"},
		followupRows(doc.Followups)); err != nil {
		return err
	}
	if err := writeSheet(f, SheetComments,
		[]string{"Comment ID", "Project ID", "Type", "Comment", "Date"},
		commentRows(doc.ProjectComments)); err != nil {
		return err
	}

	// excelize seeds new files with Sheet1.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write headers %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+2, sheet, err)
		}
	}
	return nil
}

func clientRows(clients []crm.Client) [][]any {
	rows := [][]any{}
	for _, c := range clients {
		if len(c.Contacts) == 0 {
			rows = append(rows, []any{c.ID, c.Name, c.Country, "", "", ""})
			continue
		}
		for _, ct := range c.Contacts {
			rows = append(rows, []any{c.ID, c.Name, c.Country, ct.Contact, ct.Email, ct.Phone})
		}
	}
	return rows
}

func partnerRows(partners []crm.Partner) [][]any {
	rows := [][]any{}
	for _, p := range partners {
		if len(p.Contacts) == 0 {
			rows = append(rows, []any{p.ID, p.Name, "", "", ""})
			continue
		}
		for _, ct := range p.Contacts {
			rows = append(rows, []any{p.ID, p.Name, ct.Contact, ct.Email, ct.Phone})
		}
	}
	return rows
}

func productRows(groups []crm.ProductGroup) [][]any {
	rows := [][]any{}
	for _, g := range groups {
		partner := g.Partner
		if partner == "" {
			partner = g.PartnerID
		}
		for _, item := range g.Items {
			rows = append(rows, []any{partner, item})
		}
	}
	return rows
}

func projectRows(projects []crm.Project) [][]any {
	rows := make([][]any, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []any{p.ID, p.Name, string(p.ClientID), string(p.PartnerID), p.ProductID, p.StartDate, p.Status})
	}
	return rows
}

func followupRows(followups []crm.Followup) [][]any {
	rows := make([][]any, 0, len(followups))
	for _, f := range followups {
		rows = append(rows, []any{f.ID, string(f.ClientID), string(f.ProjectID), string(f.PartnerID), f.ProductID, f.NextDate, f.Action})
	}
	return rows
}

func commentRows(comments []crm.ProjectComment) [][]any {
	rows := make([][]any, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, []any{c.ID, string(c.ProjectID), c.Type, c.Text, c.Date})
	}
	return rows
}
