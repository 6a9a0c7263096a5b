package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SabarathinamR/FinalJob/internal/store"
)

type fakeClient struct {
	sheet     store.JobSheet
	fetchErr  error
	submitErr error
	fetches   int
	submitted []store.FinalizeFields
}

func (f *fakeClient) FetchJobSheet(ctx context.Context, id int64) (store.JobSheet, error) {
	f.fetches++
	if f.fetchErr != nil {
		return store.JobSheet{}, f.fetchErr
	}
	return f.sheet, nil
}

func (f *fakeClient) SubmitFinal(ctx context.Context, id int64, fields store.FinalizeFields) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, fields)
	return nil
}

func pmSheet() store.JobSheet {
	return store.JobSheet{
		ID:          1,
		JobSheetNo:  "GT-1",
		ContractNo:  "C-7",
		TeamNo:      "T1",
		SiteForeman: "R. Kumar",
		Status:      store.StatusPendingPMApproval,
		WorkDiaryEntries: []store.Record{
			{"location": "Jln A", "typeOfWork": "Lane closure"},
		},
	}
}

func newTestReconciler(client *fakeClient) *Reconciler {
	form := NewForm(client.sheet)
	return New(form, client, 1, store.StatusPendingPMApproval)
}

func TestTickOverwritesUnfocusedFields(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)

	client.sheet.ContractNo = "C-8"
	client.sheet.SiteForeman = "S. Lee"
	r.Tick(context.Background())

	if got := r.Form().Field(FieldContractNo); got != "C-8" {
		t.Fatalf("contractNo = %q", got)
	}
	if got := r.Form().Field(FieldSiteForeman); got != "S. Lee" {
		t.Fatalf("siteForeman = %q", got)
	}
	if r.State() != StateActive {
		t.Fatalf("state = %v", r.State())
	}
}

func TestTickPreservesFocusedFieldText(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)

	// User is mid-edit in contractNo with unsaved text.
	r.Form().SetField(FieldContractNo, "C-7 rev")
	r.Form().FocusField(FieldContractNo, 3)

	client.sheet.ContractNo = "C-99"
	client.sheet.SiteForeman = "S. Lee"
	r.Tick(context.Background())

	if got := r.Form().Field(FieldContractNo); got != "C-7 rev" {
		t.Fatalf("focused field was overwritten: %q", got)
	}
	if got := r.Form().Field(FieldSiteForeman); got != "S. Lee" {
		t.Fatalf("unfocused field did not update: %q", got)
	}
	// Focus survives with the caret at the end of the text.
	focus := r.Form().FocusState()
	if focus.Field != FieldContractNo {
		t.Fatalf("focus lost: %+v", focus)
	}
	if focus.Caret != len("C-7 rev") {
		t.Fatalf("caret = %d", focus.Caret)
	}
}

func TestTickSkipsTableWithFocusedRow(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)

	r.Form().SetTable(TableWorkDiary, []store.Record{
		{"location": "Jln A", "typeOfWork": "Lane closure (edit"},
	})
	r.Form().FocusTable(TableWorkDiary)

	client.sheet.WorkDiaryEntries = []store.Record{
		{"location": "Jln B", "typeOfWork": "Resurfacing"},
	}
	client.sheet.WeatherConditionEntries = []store.Record{
		{"condition": "Rain"},
	}
	r.Tick(context.Background())

	diary := r.Form().Table(TableWorkDiary)
	if len(diary) != 1 || diary[0]["typeOfWork"] != "Lane closure (edit" {
		t.Fatalf("focused table was rebuilt: %v", diary)
	}
	weather := r.Form().Table(TableWeatherConditions)
	if len(weather) != 1 || weather[0]["condition"] != "Rain" {
		t.Fatalf("unfocused table did not rebuild: %v", weather)
	}
}

func TestTickRebuildsTableToEmpty(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)

	client.sheet.WorkDiaryEntries = nil
	r.Tick(context.Background())

	if got := r.Form().Table(TableWorkDiary); len(got) != 0 {
		t.Fatalf("table should have cleared, got %v", got)
	}
}

func TestStatusChangeDisablesTerminally(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)

	client.sheet.Status = store.StatusCompleted
	r.Tick(context.Background())

	if r.State() != StateStopped {
		t.Fatalf("state = %v", r.State())
	}
	if !r.Form().Disabled() {
		t.Fatal("form should be disabled")
	}
	if !strings.Contains(r.Form().Notice(), store.StatusCompleted) {
		t.Fatalf("notice = %q", r.Form().Notice())
	}

	// Further ticks are no-ops: no fetch fires, nothing re-enables.
	fetches := client.fetches
	client.sheet.Status = store.StatusPendingPMApproval
	r.Tick(context.Background())
	if client.fetches != fetches {
		t.Fatal("tick after terminal state still fetched")
	}
	if !r.Form().Disabled() {
		t.Fatal("terminal disable must be one-way")
	}
}

func TestFetchErrorIsTerminal(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)

	client.fetchErr = errors.New("connection refused")
	r.Tick(context.Background())

	if r.State() != StateFailed {
		t.Fatalf("state = %v", r.State())
	}
	if r.Err() == nil {
		t.Fatal("expected stored error")
	}

	// No automatic retry.
	fetches := client.fetches
	r.Tick(context.Background())
	if client.fetches != fetches {
		t.Fatal("failed session kept polling")
	}
}

func TestSubmitFinalStopsPollingAndDisables(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)
	r.Form().SetField(FieldContractNo, "C-7b")

	if err := r.SubmitFinal(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if r.State() != StateSubmitted {
		t.Fatalf("state = %v", r.State())
	}
	if !r.Form().Disabled() {
		t.Fatal("form should be disabled after submission")
	}
	if len(client.submitted) != 1 || client.submitted[0].ContractNo != "C-7b" {
		t.Fatalf("submitted payload = %+v", client.submitted)
	}

	fetches := client.fetches
	r.Tick(context.Background())
	if client.fetches != fetches {
		t.Fatal("polling resumed after successful submission")
	}
	if err := r.SubmitFinal(context.Background()); err == nil {
		t.Fatal("second submission should be rejected")
	}
}

func TestSubmitFinalWhilePolling(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)
	r.SetInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Keystrokes land through Edit while the poll loop is live.
	r.Edit(func(f *Form) {
		f.SetField(FieldContractNo, "C-7 final")
		f.FocusField(FieldContractNo, len("C-7 final"))
	})

	if err := r.SubmitFinal(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The loop observes the terminal state and exits cleanly.
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after submission", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after submission")
	}

	if r.State() != StateSubmitted {
		t.Fatalf("state = %v", r.State())
	}
	if !r.Form().Disabled() {
		t.Fatal("form should be disabled after submission")
	}
	if len(client.submitted) != 1 || client.submitted[0].ContractNo != "C-7 final" {
		t.Fatalf("submitted payload = %+v", client.submitted)
	}

	// Any fetch that was in flight when the submission started must
	// not have merged into the disabled surface.
	if got := r.Form().Notice(); !strings.Contains(got, "finalized") {
		t.Fatalf("notice = %q", got)
	}
}

func TestFailedSubmitResumesEditing(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)

	client.submitErr = errors.New("status conflict")
	if err := r.SubmitFinal(context.Background()); err == nil {
		t.Fatal("expected submit error")
	}

	if r.State() != StateActive {
		t.Fatalf("state = %v, editing should resume", r.State())
	}
	if r.Form().Disabled() {
		t.Fatal("form should be re-enabled after failed submission")
	}

	// Polling resumes.
	fetches := client.fetches
	r.Tick(context.Background())
	if client.fetches != fetches+1 {
		t.Fatal("polling did not resume")
	}

	// Retry after the failure succeeds.
	client.submitErr = nil
	if err := r.SubmitFinal(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if r.State() != StateSubmitted {
		t.Fatalf("state = %v", r.State())
	}
}

func TestSubmitExcludesSignatures(t *testing.T) {
	sheet := pmSheet()
	sheet.OMSignature = "Approved via email on 02/01/2024, 14:30:05"
	client := &fakeClient{sheet: sheet}
	form := NewForm(client.sheet)
	r := New(form, client, 1, store.StatusPendingPMApproval)

	if err := r.SubmitFinal(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// FinalizeFields has no signature members at all; confirm the
	// payload carries only editable content.
	payload := client.submitted[0]
	if payload.JobSheetNo != "GT-1" || payload.TeamNo != "T1" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-15", "2024-01-15"},
		{"2024-01-15T00:00:00Z", "2024-01-15"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeDate(tt.in); got != tt.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScrollSurvivesMerge(t *testing.T) {
	client := &fakeClient{sheet: pmSheet()}
	r := newTestReconciler(client)
	r.Form().SetScroll(420)

	client.sheet.ContractNo = "C-8"
	r.Tick(context.Background())

	if got := r.Form().Scroll(); got != 420 {
		t.Fatalf("scroll = %d", got)
	}
}
