package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SabarathinamR/FinalJob/internal/audit"
	"github.com/SabarathinamR/FinalJob/internal/config"
	"github.com/SabarathinamR/FinalJob/internal/email"
	"github.com/SabarathinamR/FinalJob/internal/export"
	"github.com/SabarathinamR/FinalJob/internal/search"
	"github.com/SabarathinamR/FinalJob/internal/store"
)

type dataStore interface {
	CreateJobSheet(ctx context.Context, sheet store.JobSheet) (int64, error)
	GetJobSheet(ctx context.Context, id int64) (store.JobSheet, error)
	CompleteJobSheet(ctx context.Context, id int64, fields store.CompletionFields) (bool, error)
	AdvanceApproval(ctx context.Context, id int64, signatureColumn, signature, fromStatus, toStatus string) (bool, error)
	FinalizeJobSheet(ctx context.Context, id int64, fields store.FinalizeFields, pmSignature string) (bool, error)
	GetTeamAssignment(ctx context.Context, teamNo string) (store.TeamAssignment, error)
	ListEmployeesByTeam(ctx context.Context, teamNo string) ([]store.Employee, error)
	Ping(ctx context.Context) error
}

type mailer interface {
	IsConfigured() bool
	SendHTMLEmail(to []string, subject, htmlBody string) error
	SendHTMLEmailWithAttachments(to []string, subject, htmlBody string, attachments []email.Attachment) error
}

type renderer interface {
	RenderStartedHTML(sheet store.JobSheet) (string, error)
	RenderApprovalHTML(sheet store.JobSheet, approvalLink string) (string, error)
	RenderPDF(sheet store.JobSheet) (*export.Result, error)
}

type auditTrail interface {
	RecordTransition(jobID int64, stage, actor string, snapshot any) (audit.Entry, error)
	History(jobID int64, limit int) ([]audit.Entry, error)
	SnapshotAt(jobID int64, hash string) (json.RawMessage, error)
}

type archiver interface {
	StorePDF(ctx context.Context, jobSheetNo string, pdf []byte) (string, error)
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexJobSheet(record search.Record)
}

// approvalStage describes one email-click stage of the chain: the
// status it owns, the status it advances to, the signature column it
// writes, and where the follow-up notification goes.
type approvalStage struct {
	signatureColumn string
	ownsStatus      string
	nextStatus      string
	nextRole        string
	signaturePrefix string
}

var approvalStages = map[string]approvalStage{
	"om": {
		signatureColumn: "omsignature",
		ownsStatus:      store.StatusPendingOMApproval,
		nextStatus:      store.StatusPendingQCApproval,
		nextRole:        "QC",
		signaturePrefix: "Approved via email on",
	},
	"qc": {
		signatureColumn: "qcsignature",
		ownsStatus:      store.StatusPendingQCApproval,
		nextStatus:      store.StatusPendingPMApproval,
		nextRole:        "PM",
		signaturePrefix: "Approved via email on",
	},
}

// Service owns the job sheet approval state machine. Every transition
// is a single conditional write in the store; everything that happens
// after a committed transition (mail, PDF, archive, audit, indexing)
// is best-effort and never rolls the transition back.
type Service struct {
	cfg      config.Config
	store    dataStore
	mail     mailer
	renderer renderer
	audit    auditTrail
	archive  archiver
	search   searchIndex
	now      func() time.Time
}

func New(cfg config.Config, dataStore dataStore, mail mailer, renderer renderer, auditTrail auditTrail, archive archiver, searchIndex searchIndex) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		mail:     mail,
		renderer: renderer,
		audit:    auditTrail,
		archive:  archive,
		search:   searchIndex,
		now:      time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// StartInput carries the foreman's part-1 submission.
type StartInput struct {
	JobSheetNo       string         `json:"jobSheetNo"`
	Date             string         `json:"date"`
	Day              string         `json:"day"`
	ContractNo       string         `json:"contractNo"`
	TeamNo           string         `json:"teamNo"`
	WorkingShift     string         `json:"workingShift"`
	SiteForeman      string         `json:"siteForeman"`
	WorkingTimeFrom  string         `json:"workingTimeFrom"`
	WorkingTimeTo    string         `json:"workingTimeTo"`
	TmwpLcVehNo      string         `json:"tmwpLcVehNo"`
	LorryVehNo       string         `json:"lorryVehNo"`
	NoOfTma          string         `json:"noOfTma"`
	ManpowerOnSite   []store.Record `json:"manpowerOnSite"`
	ManpowerTransfer []store.Record `json:"manpowerTransfer"`
}

// Start creates a new snapshot in In Progress and notifies the team's
// OM that a job has been opened. The notification is informational
// only: a missing OM address is logged, not surfaced.
func (s *Service) Start(ctx context.Context, input StartInput) (int64, error) {
	if input.JobSheetNo == "" {
		return 0, domainError(400, "INVALID_BODY", "jobSheetNo is required.")
	}

	sheet := store.JobSheet{
		JobSheetNo:       input.JobSheetNo,
		Date:             input.Date,
		Day:              input.Day,
		ContractNo:       input.ContractNo,
		TeamNo:           input.TeamNo,
		WorkingShift:     input.WorkingShift,
		SiteForeman:      input.SiteForeman,
		WorkingTimeFrom:  input.WorkingTimeFrom,
		WorkingTimeTo:    input.WorkingTimeTo,
		TmwpLcVehNo:      input.TmwpLcVehNo,
		LorryVehNo:       input.LorryVehNo,
		NoOfTma:          input.NoOfTma,
		ManpowerOnSite:   input.ManpowerOnSite,
		ManpowerTransfer: input.ManpowerTransfer,
	}

	id, err := s.store.CreateJobSheet(ctx, sheet)
	if errors.Is(err, store.ErrDuplicateKey) {
		return 0, errDuplicateKey(input.JobSheetNo)
	}
	if err != nil {
		return 0, fmt.Errorf("create job sheet: %w", err)
	}

	created, err := s.store.GetJobSheet(ctx, id)
	if err != nil {
		log.Printf("jobsheet %d: re-read after create: %v", id, err)
		created = sheet
		created.ID = id
		created.Status = store.StatusInProgress
	}

	s.recordAudit(id, "Job sheet started", created.SiteForeman, created)
	s.indexSheet(created)
	s.notifyStarted(created)

	return id, nil
}

// Complete merges the foreman's diary fields and advances the sheet to
// Pending OM Approval, then emails the OM an approval link with the
// rendered PDF attached. The OM address is resolved before the write
// so a routing gap cannot leave a half-applied transition.
func (s *Service) Complete(ctx context.Context, id int64, fields store.CompletionFields) (store.JobSheet, *export.Result, error) {
	sheet, err := s.getSheet(ctx, id)
	if err != nil {
		return store.JobSheet{}, nil, err
	}

	assignment, err := s.store.GetTeamAssignment(ctx, sheet.TeamNo)
	if errors.Is(err, store.ErrNotFound) || (err == nil && assignment.OMEmail == "") {
		return store.JobSheet{}, nil, errMissingRouting(sheet.TeamNo, "OM")
	}
	if err != nil {
		return store.JobSheet{}, nil, fmt.Errorf("resolve OM routing: %w", err)
	}

	applied, err := s.store.CompleteJobSheet(ctx, id, fields)
	if err != nil {
		return store.JobSheet{}, nil, fmt.Errorf("complete job sheet: %w", err)
	}
	if !applied {
		return store.JobSheet{}, nil, s.staleTransition(ctx, id)
	}

	updated, err := s.getSheet(ctx, id)
	if err != nil {
		return store.JobSheet{}, nil, err
	}

	s.recordAudit(id, "Foreman submission completed", updated.RecordedBy, updated)
	s.indexSheet(updated)

	pdf := s.renderSheetPDF(updated)
	link := fmt.Sprintf("%s/api/approve?approver=om&jobId=%d", s.cfg.BaseURL, id)
	s.notifyApprover(assignment.OMEmail, updated, link, pdf)

	return updated, pdf, nil
}

// Approve applies one om/qc email-click transition. Repeated clicks are
// idempotent-safe: the conditional write matches zero rows and the
// caller gets ALREADY_PROCESSED with nothing mutated.
func (s *Service) Approve(ctx context.Context, id int64, approver string) (store.JobSheet, error) {
	stage, ok := approvalStages[approver]
	if !ok {
		return store.JobSheet{}, domainError(400, "INVALID_APPROVER", fmt.Sprintf("Unknown approver %q.", approver))
	}

	sheet, err := s.getSheet(ctx, id)
	if err != nil {
		return store.JobSheet{}, err
	}

	assignment, err := s.store.GetTeamAssignment(ctx, sheet.TeamNo)
	if errors.Is(err, store.ErrNotFound) {
		return store.JobSheet{}, errMissingRouting(sheet.TeamNo, stage.nextRole)
	}
	if err != nil {
		return store.JobSheet{}, fmt.Errorf("resolve routing: %w", err)
	}
	nextEmail := s.nextRecipient(assignment, approver)
	if nextEmail == "" {
		return store.JobSheet{}, errMissingRouting(sheet.TeamNo, stage.nextRole)
	}

	signature := fmt.Sprintf("%s %s", stage.signaturePrefix, s.now().Format("02/01/2006, 15:04:05"))
	applied, err := s.store.AdvanceApproval(ctx, id, stage.signatureColumn, signature, stage.ownsStatus, stage.nextStatus)
	if err != nil {
		return store.JobSheet{}, fmt.Errorf("advance approval: %w", err)
	}
	if !applied {
		return store.JobSheet{}, s.staleTransition(ctx, id)
	}

	updated, err := s.getSheet(ctx, id)
	if err != nil {
		return store.JobSheet{}, err
	}

	s.recordAudit(id, fmt.Sprintf("Approved by %s", stage.roleName()), stage.roleName(), updated)
	s.indexSheet(updated)
	s.notifyApprover(nextEmail, updated, s.nextLink(id, approver), nil)

	return updated, nil
}

// Finalize merges the PM's edits and completes the chain. Earlier
// signatures come from the stored snapshot, never from the payload.
// The finalized PDF goes to HR by mail and to the archive bucket.
func (s *Service) Finalize(ctx context.Context, id int64, fields store.FinalizeFields) (store.JobSheet, error) {
	sheet, err := s.getSheet(ctx, id)
	if err != nil {
		return store.JobSheet{}, err
	}

	assignment, err := s.store.GetTeamAssignment(ctx, sheet.TeamNo)
	if errors.Is(err, store.ErrNotFound) || (err == nil && assignment.HREmail == "") {
		return store.JobSheet{}, errMissingRouting(sheet.TeamNo, "HR")
	}
	if err != nil {
		return store.JobSheet{}, fmt.Errorf("resolve HR routing: %w", err)
	}

	pmSignature := fmt.Sprintf("Approved & Finalized by PM on %s", s.now().Format("02/01/2006, 15:04:05"))
	applied, err := s.store.FinalizeJobSheet(ctx, id, fields, pmSignature)
	if err != nil {
		return store.JobSheet{}, fmt.Errorf("finalize job sheet: %w", err)
	}
	if !applied {
		return store.JobSheet{}, s.staleTransition(ctx, id)
	}

	final, err := s.getSheet(ctx, id)
	if err != nil {
		return store.JobSheet{}, err
	}

	s.recordAudit(id, "Finalized by PM", "PM", final)
	s.indexSheet(final)

	pdf := s.renderSheetPDF(final)
	s.notifyFinalized(assignment.HREmail, final, pdf)
	s.archiveFinalPDF(final, pdf)

	return final, nil
}

// Get returns the full decoded snapshot. This is the poll target for
// the live editing view.
func (s *Service) Get(ctx context.Context, id int64) (store.JobSheet, error) {
	return s.getSheet(ctx, id)
}

// Employees returns the roster for one team.
func (s *Service) Employees(ctx context.Context, teamNo string) ([]store.Employee, error) {
	if teamNo == "" {
		return nil, domainError(400, "INVALID_QUERY", "Team number is required.")
	}
	employees, err := s.store.ListEmployeesByTeam(ctx, teamNo)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return employees, nil
}

// History lists the audit trail for one job sheet, newest first.
func (s *Service) History(ctx context.Context, id int64, limit int) ([]audit.Entry, error) {
	if _, err := s.getSheet(ctx, id); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []audit.Entry{}, nil
	}
	entries, err := s.audit.History(id, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return entries, nil
}

// HistorySnapshot returns the snapshot recorded by one audit commit.
func (s *Service) HistorySnapshot(ctx context.Context, id int64, hash string) (json.RawMessage, error) {
	if _, err := s.getSheet(ctx, id); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, errNotFound()
	}
	snapshot, err := s.audit.SnapshotAt(id, hash)
	if err != nil {
		return nil, domainError(404, "NOT_FOUND", "No snapshot recorded under that hash.")
	}
	return snapshot, nil
}

// Search finds job sheets by identifier text and status.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

func (s *Service) getSheet(ctx context.Context, id int64) (store.JobSheet, error) {
	sheet, err := s.store.GetJobSheet(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.JobSheet{}, errNotFound()
	}
	if err != nil {
		return store.JobSheet{}, fmt.Errorf("read job sheet: %w", err)
	}
	return sheet, nil
}

// staleTransition distinguishes a vanished row from a sheet whose
// status has already moved on.
func (s *Service) staleTransition(ctx context.Context, id int64) error {
	sheet, err := s.store.GetJobSheet(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errNotFound()
	}
	if err != nil {
		return fmt.Errorf("read job sheet after stale write: %w", err)
	}
	return errAlreadyProcessed(sheet.Status)
}

func (s *Service) nextRecipient(assignment store.TeamAssignment, approver string) string {
	switch approver {
	case "om":
		return assignment.QCEmail
	case "qc":
		return assignment.PMEmail
	default:
		return ""
	}
}

func (s *Service) nextLink(id int64, approver string) string {
	switch approver {
	case "om":
		return fmt.Sprintf("%s/api/approve?approver=qc&jobId=%d", s.cfg.BaseURL, id)
	case "qc":
		// PM stage needs the editable view, not a one-shot click
		return fmt.Sprintf("%s/edit.html?jobId=%d", s.cfg.BaseURL, id)
	default:
		return ""
	}
}

func (st approvalStage) roleName() string {
	switch st.signatureColumn {
	case "omsignature":
		return "OM"
	case "qcsignature":
		return "QC"
	}
	return ""
}

// renderSheetPDF is best-effort: a renderer failure degrades to a nil
// result and a log line, never to a failed transition.
func (s *Service) renderSheetPDF(sheet store.JobSheet) *export.Result {
	if s.renderer == nil {
		return nil
	}
	pdf, err := s.renderer.RenderPDF(sheet)
	if err != nil {
		log.Printf("jobsheet %d: render pdf: %v", sheet.ID, err)
		return nil
	}
	return pdf
}

func (s *Service) notifyStarted(sheet store.JobSheet) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	assignment, err := s.store.GetTeamAssignment(context.Background(), sheet.TeamNo)
	if err != nil || assignment.OMEmail == "" {
		log.Printf("jobsheet %d: no OM email for team %s, skipping start notification", sheet.ID, sheet.TeamNo)
		return
	}
	html, err := s.renderer.RenderStartedHTML(sheet)
	if err != nil {
		log.Printf("jobsheet %d: render start notification: %v", sheet.ID, err)
		return
	}
	subject := fmt.Sprintf("NOTIFICATION: Job Sheet Started - %s", sheet.JobSheetNo)
	if err := s.mail.SendHTMLEmail([]string{assignment.OMEmail}, subject, html); err != nil {
		log.Printf("jobsheet %d: send start notification: %v", sheet.ID, err)
	}
}

func (s *Service) notifyApprover(to string, sheet store.JobSheet, approvalLink string, pdf *export.Result) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	html, err := s.renderer.RenderApprovalHTML(sheet, approvalLink)
	if err != nil {
		log.Printf("jobsheet %d: render approval email: %v", sheet.ID, err)
		return
	}
	subject := fmt.Sprintf("ACTION REQUIRED: Job Sheet %s", sheet.JobSheetNo)
	var attachments []email.Attachment
	if pdf != nil {
		attachments = append(attachments, email.Attachment{
			Filename: pdf.Filename,
			Content:  pdf.Data,
			MimeType: pdf.MimeType,
		})
	}
	if err := s.mail.SendHTMLEmailWithAttachments([]string{to}, subject, html, attachments); err != nil {
		log.Printf("jobsheet %d: send approval email to %s: %v", sheet.ID, to, err)
	}
}

func (s *Service) notifyFinalized(to string, sheet store.JobSheet, pdf *export.Result) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	html, err := s.renderer.RenderApprovalHTML(sheet, "")
	if err != nil {
		log.Printf("jobsheet %d: render finalized email: %v", sheet.ID, err)
		return
	}
	subject := fmt.Sprintf("FINALIZED Job Sheet: %s", sheet.JobSheetNo)
	var attachments []email.Attachment
	if pdf != nil {
		attachments = append(attachments, email.Attachment{
			Filename: pdf.Filename,
			Content:  pdf.Data,
			MimeType: pdf.MimeType,
		})
	}
	if err := s.mail.SendHTMLEmailWithAttachments([]string{to}, subject, html, attachments); err != nil {
		log.Printf("jobsheet %d: send finalized email to %s: %v", sheet.ID, to, err)
	}
}

func (s *Service) archiveFinalPDF(sheet store.JobSheet, pdf *export.Result) {
	if s.archive == nil || pdf == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	object, err := s.archive.StorePDF(ctx, sheet.JobSheetNo, pdf.Data)
	if err != nil {
		log.Printf("jobsheet %d: archive pdf: %v", sheet.ID, err)
		return
	}
	log.Printf("jobsheet %d: archived as %s", sheet.ID, object)
}

func (s *Service) recordAudit(id int64, stage, actor string, sheet store.JobSheet) {
	if s.audit == nil {
		return
	}
	if actor == "" {
		actor = "system"
	}
	if _, err := s.audit.RecordTransition(id, stage, actor, sheet); err != nil {
		log.Printf("jobsheet %d: record audit: %v", id, err)
	}
}

func (s *Service) indexSheet(sheet store.JobSheet) {
	if s.search == nil {
		return
	}
	s.search.IndexJobSheet(search.Record{
		ID:          sheet.ID,
		JobSheetNo:  sheet.JobSheetNo,
		ContractNo:  sheet.ContractNo,
		TeamNo:      sheet.TeamNo,
		SiteForeman: sheet.SiteForeman,
		Date:        sheet.Date,
		Status:      sheet.Status,
	})
}
