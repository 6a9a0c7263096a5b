package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SabarathinamR/FinalJob/internal/store"
)

// DefaultInterval matches the edit view's background refresh cadence.
const DefaultInterval = 10 * time.Second

// State is the reconciler lifecycle. Every state except StateActive is
// terminal for the session; the only way back to StateActive is a
// failed SubmitFinal, which resumes editing.
type State int

const (
	StateActive State = iota
	StateStopped
	StateSubmitted
	StateFailed
)

// Client is what the reconciler needs from the transport layer.
type Client interface {
	FetchJobSheet(ctx context.Context, id int64) (store.JobSheet, error)
	SubmitFinal(ctx context.Context, id int64, fields store.FinalizeFields) error
}

// Reconciler merges freshly fetched snapshots into a Form on each tick
// while the PM edits it. It is bound to the status the view was opened
// for; observing any other status terminally disables the view.
//
// Run is expected to poll from its own goroutine while edits and the
// final submission arrive from another, so state and the form are
// guarded by one mutex. Edits made while Run is polling go through
// Edit; network calls happen outside the lock, and a fetch that was in
// flight when a submission started is discarded rather than merged.
type Reconciler struct {
	mu          sync.Mutex
	form        *Form
	client      Client
	jobID       int64
	boundStatus string
	interval    time.Duration
	state       State
	lastErr     error
}

func New(form *Form, client Client, jobID int64, boundStatus string) *Reconciler {
	return &Reconciler{
		form:        form,
		client:      client,
		jobID:       jobID,
		boundStatus: boundStatus,
		interval:    DefaultInterval,
	}
}

func (r *Reconciler) SetInterval(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = interval
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that moved the reconciler into StateFailed.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Form exposes the editing surface. While Run is polling, mutations
// must go through Edit instead.
func (r *Reconciler) Form() *Form { return r.form }

// Edit applies a user edit to the form under the reconciler's lock.
func (r *Reconciler) Edit(fn func(*Form)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.form)
}

// Run polls until a terminal state is reached or the context ends.
func (r *Reconciler) Run(ctx context.Context) error {
	r.mu.Lock()
	interval := r.interval
	r.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
			if r.State() != StateActive {
				return r.Err()
			}
		}
	}
}

// Tick performs one poll-and-merge cycle. Outside StateActive it is a
// no-op, which is what makes the terminal states one-way.
func (r *Reconciler) Tick(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return
	}
	jobID := r.jobID
	r.mu.Unlock()

	sheet, err := r.client.FetchJobSheet(ctx, jobID)

	r.mu.Lock()
	defer r.mu.Unlock()

	// A submission may have started while the fetch was in flight; its
	// result must not touch the submitting surface.
	if r.state != StateActive {
		return
	}

	if err != nil {
		// Transport or application failure is terminal for the
		// session; the user reloads to start over.
		r.state = StateFailed
		r.lastErr = err
		r.form.disable(fmt.Sprintf("Could not refresh this job sheet: %v. Please reload the page.", err))
		return
	}

	if sheet.Status != r.boundStatus {
		r.state = StateStopped
		r.form.disable(fmt.Sprintf("This job sheet is no longer editable; its status is now '%s'.", sheet.Status))
		return
	}

	r.merge(sheet)
}

// merge applies a fetched snapshot around the focus owner: the focused
// scalar keeps its unsaved text, a table with a focused row input is
// not rebuilt, everything else takes the server value. Callers hold
// r.mu.
func (r *Reconciler) merge(sheet store.JobSheet) {
	focus := r.form.FocusState()
	scroll := r.form.Scroll()

	var skip map[string]bool
	if focus.Field != "" {
		skip = map[string]bool{focus.Field: true}
	}
	r.form.applyScalars(sheet, skip)

	for name, rows := range map[string][]store.Record{
		TableManpowerOnSite:    sheet.ManpowerOnSite,
		TableManpowerTransfer:  sheet.ManpowerTransfer,
		TableWorkDiary:         sheet.WorkDiaryEntries,
		TableWeatherConditions: sheet.WeatherConditionEntries,
	} {
		if focus.Table == name {
			continue
		}
		r.form.tables[name] = cloneRecords(rows)
	}

	// Focus survives the merge by name; the caret lands at the end of
	// the field's current text. Scroll position is untouched.
	if focus.Field != "" {
		r.form.FocusField(focus.Field, len(r.form.Field(focus.Field)))
	}
	r.form.SetScroll(scroll)
}

// SubmitFinal sends the PM submission. The state moves to
// StateSubmitted before the request leaves, so a concurrent poll
// cannot merge into the submitting surface; on failure the surface
// re-enables and polling resumes so the user can correct and retry.
func (r *Reconciler) SubmitFinal(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return fmt.Errorf("form is no longer editable")
	}
	r.state = StateSubmitted
	r.form.disable("Submitting...")
	payload := r.form.FinalizePayload()
	jobID := r.jobID
	r.mu.Unlock()

	err := r.client.SubmitFinal(ctx, jobID, payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = StateActive
		r.form.enable()
		return err
	}

	r.form.disable("Job sheet finalized. You may close this window.")
	return nil
}
