package status

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"workshop/api/internal/feed"
	"workshop/api/internal/store"
)

// fakeMutationStore backs both the write path and the policy it consults.
type fakeMutationStore struct {
	job              store.Job
	history          []store.StatusHistoryEntry
	invoice          *store.Invoice
	updateErr        error
	appendErr        error
	updatedTo        []string
	appendedStatuses []string
	appendedBy       []string
}

func (f *fakeMutationStore) GetJobByID(ctx context.Context, jobID int64) (store.Job, error) {
	if jobID == f.job.ID {
		return f.job, nil
	}
	return store.Job{}, sql.ErrNoRows
}

func (f *fakeMutationStore) GetJobByNumber(ctx context.Context, jobNumber string) (store.Job, error) {
	if jobNumber == f.job.JobNumber {
		return f.job, nil
	}
	return store.Job{}, sql.ErrNoRows
}

func (f *fakeMutationStore) UpdateJobStatus(ctx context.Context, jobID int64, status, updatedBy string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedTo = append(f.updatedTo, status)
	return nil
}

func (f *fakeMutationStore) AppendStatusHistory(ctx context.Context, entry store.StatusHistoryEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appendedStatuses = append(f.appendedStatuses, entry.ToStatus)
	f.appendedBy = append(f.appendedBy, entry.ChangedBy)
	return nil
}

func (f *fakeMutationStore) ListStatusHistory(ctx context.Context, jobID int64) ([]store.StatusHistoryEntry, error) {
	return f.history, nil
}

func (f *fakeMutationStore) LatestInvoice(ctx context.Context, jobID int64) (*store.Invoice, error) {
	return f.invoice, nil
}

type fakePublisher struct {
	entries []feed.Entry
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, entry feed.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func testService(st *fakeMutationStore, publisher activityPublisher) *Service {
	logger := zap.NewNop()
	svc := &Service{
		store:  st,
		policy: &Policy{store: st, logger: logger},
		logger: logger,
	}
	if publisher != nil {
		svc.feed = publisher
	}
	return svc
}

func fullPrereqHistory(jobID int64) []store.StatusHistoryEntry {
	now := time.Now()
	return []store.StatusHistoryEntry{
		{JobID: jobID, ToStatus: "technician_work_completed", ChangedAt: now},
		{JobID: jobID, ToStatus: "vhc_completed", ChangedAt: now},
		{JobID: jobID, ToStatus: "pricing_completed", ChangedAt: now},
	}
}

func TestManualUpdateUnknownTarget(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "in_progress"}}
	svc := testService(st, nil)
	_, err := svc.ManualUpdate(context.Background(), "42", "exploded", "sam", "")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Code != "UNKNOWN_STATUS" {
		t.Fatalf("expected UNKNOWN_STATUS, got %v", err)
	}
	if len(st.updatedTo) != 0 || len(st.appendedStatuses) != 0 {
		t.Fatal("rejected update must not touch the store")
	}
}

func TestManualUpdateUnknownJob(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "booked"}}
	svc := testService(st, nil)
	if _, err := svc.ManualUpdate(context.Background(), "J-9999", "checked_in", "sam", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManualUpdateLifecycle(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "booked"}}
	svc := testService(st, nil)
	result, err := svc.ManualUpdate(context.Background(), "J-1001", "Checked In", "sam", "car arrived")
	if err != nil {
		t.Fatalf("manual update: %v", err)
	}
	if result.Kind != "status" || result.ToStatus != "checked_in" || result.FromStatus != "booked" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(st.updatedTo) != 1 || st.updatedTo[0] != "checked_in" {
		t.Fatalf("job row updates = %v, want [checked_in]", st.updatedTo)
	}
	if len(st.appendedStatuses) != 1 || st.appendedStatuses[0] != "checked_in" {
		t.Fatalf("history appends = %v, want [checked_in]", st.appendedStatuses)
	}
}

func TestManualUpdateLegacyAliasCollapses(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "checked_in"}}
	svc := testService(st, nil)
	result, err := svc.ManualUpdate(context.Background(), "42", "Being Washed", "sam", "")
	if err != nil {
		t.Fatalf("manual update: %v", err)
	}
	if result.ToStatus != "in_progress" {
		t.Fatalf("to status = %q, want in_progress", result.ToStatus)
	}
	if st.updatedTo[0] != "in_progress" {
		t.Fatalf("stored status = %q, want canonical macro", st.updatedTo[0])
	}
}

func TestManualUpdateInvoicedRequiresPrerequisites(t *testing.T) {
	st := &fakeMutationStore{
		job: store.Job{ID: 42, JobNumber: "J-1001", Status: "in_progress"},
		history: []store.StatusHistoryEntry{
			{JobID: 42, ToStatus: "technician_work_completed", ChangedAt: time.Now()},
			{JobID: 42, ToStatus: "vhc_completed", ChangedAt: time.Now()},
		},
	}
	svc := testService(st, nil)
	_, err := svc.ManualUpdate(context.Background(), "42", "invoiced", "sam", "")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Code != "MISSING_PREREQUISITES" {
		t.Fatalf("expected MISSING_PREREQUISITES, got %v", err)
	}
	if len(validationErr.Missing) != 1 || validationErr.Missing[0] != "pricing_completed" {
		t.Fatalf("missing = %v, want [pricing_completed]", validationErr.Missing)
	}
	if len(st.updatedTo) != 0 {
		t.Fatal("failed validation must not update the job row")
	}
}

func TestManualUpdateInvoicedWithPrerequisites(t *testing.T) {
	st := &fakeMutationStore{
		job:     store.Job{ID: 42, JobNumber: "J-1001", Status: "in_progress"},
		history: fullPrereqHistory(42),
	}
	svc := testService(st, nil)
	result, err := svc.ManualUpdate(context.Background(), "42", "invoiced", "sam", "")
	if err != nil {
		t.Fatalf("manual update: %v", err)
	}
	if result.ToStatus != "invoiced" {
		t.Fatalf("to status = %q, want invoiced", result.ToStatus)
	}
}

func TestManualUpdateCompleteRequiresInvoice(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "invoiced"}}
	svc := testService(st, nil)
	_, err := svc.ManualUpdate(context.Background(), "42", "complete", "sam", "")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Code != "INVOICE_REQUIRED" {
		t.Fatalf("expected INVOICE_REQUIRED, got %v", err)
	}

	st.invoice = &store.Invoice{JobID: 42, Number: "INV-7", RaisedAt: time.Now()}
	if _, err := svc.ManualUpdate(context.Background(), "42", "complete", "sam", ""); err != nil {
		t.Fatalf("manual update with invoice: %v", err)
	}
}

func TestManualUpdateAuditFailureDoesNotFailMutation(t *testing.T) {
	st := &fakeMutationStore{
		job:       store.Job{ID: 42, JobNumber: "J-1001", Status: "booked"},
		appendErr: errors.New("history table unavailable"),
	}
	svc := testService(st, nil)
	result, err := svc.ManualUpdate(context.Background(), "42", "checked_in", "sam", "")
	if err != nil {
		t.Fatalf("manual update: %v", err)
	}
	if len(st.updatedTo) != 1 || result.ToStatus != "checked_in" {
		t.Fatalf("status update must land despite audit failure: %+v", result)
	}
}

func TestManualUpdateSubStatusEvent(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "in_progress"}}
	svc := testService(st, nil)
	result, err := svc.ManualUpdate(context.Background(), "42", "vhc_completed", "kev", "all green")
	if err != nil {
		t.Fatalf("manual update: %v", err)
	}
	if result.Kind != "event" || result.ToStatus != "vhc_completed" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(st.updatedTo) != 0 {
		t.Fatal("sub-status event must not touch the job row")
	}
	if len(st.appendedStatuses) != 1 || st.appendedStatuses[0] != "vhc_completed" {
		t.Fatalf("history appends = %v, want [vhc_completed]", st.appendedStatuses)
	}
}

func TestManualUpdateSubStatusAppendFailureFails(t *testing.T) {
	st := &fakeMutationStore{
		job:       store.Job{ID: 42, JobNumber: "J-1001", Status: "in_progress"},
		appendErr: errors.New("history table unavailable"),
	}
	svc := testService(st, nil)
	if _, err := svc.ManualUpdate(context.Background(), "42", "vhc_completed", "kev", ""); err == nil {
		t.Fatal("event append is the operation, its failure must propagate")
	}
}

func TestManualUpdatePublishesActivity(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "booked"}}
	publisher := &fakePublisher{}
	svc := testService(st, publisher)
	if _, err := svc.ManualUpdate(context.Background(), "42", "checked_in", "sam", "arrived"); err != nil {
		t.Fatalf("manual update: %v", err)
	}
	if len(publisher.entries) != 1 {
		t.Fatalf("published entries = %d, want 1", len(publisher.entries))
	}
	entry := publisher.entries[0]
	if entry.Status != "checked_in" || entry.Actor != "sam" || entry.JobNumber != "J-1001" {
		t.Fatalf("unexpected feed entry: %+v", entry)
	}
	if entry.ID == "" {
		t.Fatal("feed entry must carry an identifier")
	}
}

func TestManualUpdatePublishFailureTolerated(t *testing.T) {
	st := &fakeMutationStore{job: store.Job{ID: 42, JobNumber: "J-1001", Status: "booked"}}
	publisher := &fakePublisher{err: errors.New("redis gone")}
	svc := testService(st, publisher)
	if _, err := svc.ManualUpdate(context.Background(), "42", "checked_in", "sam", ""); err != nil {
		t.Fatalf("feed failure must not fail the mutation: %v", err)
	}
}
