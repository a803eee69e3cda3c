package review

import (
	"context"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// ExportPDF renders a printable summary of a document, its latest task and
// the role scores.
func (s *Service) ExportPDF(ctx context.Context, actor Actor, documentID string, w io.Writer) error {
	doc, tasks, _, err := s.current(ctx, actor, documentID)
	if err != nil {
		return err
	}
	task := tasks[len(tasks)-1]
	scores, err := s.scoresFor(doc)
	if err != nil {
		return err
	}
	weights, _, err := s.evaluateWeights(ctx, s.store, doc)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, doc.Title)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Kind: %s    Year: %d    Period: %s", doc.Kind, doc.Year, doc.Period))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Stage: %s    Status: %s", task.Stage, task.Status))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Total weight: %s (limit %s)", weights.Total, weights.Limit))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 7, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Weight", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Owner", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Checker", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Approver", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	row := func(name, weight string, owner, checker, approver int) {
		pdf.CellFormat(90, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, weight, "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprint(owner), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprint(checker), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprint(approver), "1", 1, "R", false, 0, "")
	}
	for _, li := range doc.LineItems {
		row(li.Name, li.Weight.String(), li.Achievement.Owner, li.Achievement.Checker, li.Achievement.Approver)
	}
	for _, c := range doc.Competencies {
		row(c.Name, c.Weight.String(), c.Levels.Owner, c.Levels.Checker, c.Levels.Approver)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Scores  owner %s  checker %s  approver %s", scores.Owner, scores.Checker, scores.Approver))

	return pdf.Output(w)
}
