// Package export renders job sheet snapshots as HTML documents and
// rasterizes them to PDF through headless Chrome.
package export

import (
	"fmt"

	"github.com/SabarathinamR/FinalJob/internal/store"
)

// Result is a generated document blob.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Service renders job sheets. It is a pure function of the snapshot:
// the same sheet always yields the same document.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// RenderApprovalHTML renders the full job sheet with an embedded
// review/approve button pointing at approvalLink. An empty link
// renders the document without the button.
func (s *Service) RenderApprovalHTML(sheet store.JobSheet, approvalLink string) (string, error) {
	data := buildSheetData(sheet, "Job Sheet Details", "A job sheet requires your attention.", approvalLink, true)
	html, err := renderSheetTemplate(data)
	if err != nil {
		return "", fmt.Errorf("render job sheet: %w", err)
	}
	return html, nil
}

// RenderStartedHTML renders the part-1 notification sent when a
// foreman opens a new sheet: job details and manpower tables only.
func (s *Service) RenderStartedHTML(sheet store.JobSheet) (string, error) {
	intro := "This is a notification that a new job has been started by the foreman. " +
		"You will receive a separate email for final approval once the job is completed."
	data := buildSheetData(sheet, "Job Sheet Started (Notification)", intro, "", false)
	html, err := renderSheetTemplate(data)
	if err != nil {
		return "", fmt.Errorf("render started notification: %w", err)
	}
	return html, nil
}

// RenderPDF renders the full job sheet document (no approval button)
// and converts it to an A4 PDF.
func (s *Service) RenderPDF(sheet store.JobSheet) (*Result, error) {
	html, err := s.RenderApprovalHTML(sheet, "")
	if err != nil {
		return nil, err
	}
	pdf, err := renderPDF(html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(sheet.JobSheetNo) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}
