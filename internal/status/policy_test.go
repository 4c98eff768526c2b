package status

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"workshop/api/internal/store"
)

type fakePolicyStore struct {
	listStatusHistory func(ctx context.Context, jobID int64) ([]store.StatusHistoryEntry, error)
	latestInvoice     func(ctx context.Context, jobID int64) (*store.Invoice, error)
}

func (f *fakePolicyStore) ListStatusHistory(ctx context.Context, jobID int64) ([]store.StatusHistoryEntry, error) {
	if f.listStatusHistory != nil {
		return f.listStatusHistory(ctx, jobID)
	}
	return nil, nil
}

func (f *fakePolicyStore) LatestInvoice(ctx context.Context, jobID int64) (*store.Invoice, error) {
	if f.latestInvoice != nil {
		return f.latestInvoice(ctx, jobID)
	}
	return nil, nil
}

func testPolicy(st policyStore) *Policy {
	return &Policy{store: st, logger: zap.NewNop()}
}

func TestCanTransitionNeverBlocks(t *testing.T) {
	policy := testPolicy(&fakePolicyStore{})
	cases := []struct{ from, to string }{
		{"booked", "checked_in"},
		{"booked", "complete"},
		{"complete", "booked"},
		{"something_legacy", "in_progress"},
		{"invoiced", "invoiced"},
	}
	for _, tc := range cases {
		if !policy.CanTransition(tc.from, tc.to) {
			t.Fatalf("transition %s -> %s was blocked", tc.from, tc.to)
		}
	}
}

func TestInvoicingPrerequisitesReportsMissingInOrder(t *testing.T) {
	policy := testPolicy(&fakePolicyStore{
		listStatusHistory: func(ctx context.Context, jobID int64) ([]store.StatusHistoryEntry, error) {
			return []store.StatusHistoryEntry{
				{JobID: jobID, ToStatus: "vhc_completed", ChangedAt: time.Now()},
				{JobID: jobID, ToStatus: "checked_in", ChangedAt: time.Now()},
			}, nil
		},
	})
	missing, err := policy.InvoicingPrerequisites(context.Background(), 42)
	if err != nil {
		t.Fatalf("prerequisites: %v", err)
	}
	want := []string{"technician_work_completed", "pricing_completed"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
}

func TestInvoicingPrerequisitesResolvesLegacyAliases(t *testing.T) {
	policy := testPolicy(&fakePolicyStore{
		listStatusHistory: func(ctx context.Context, jobID int64) ([]store.StatusHistoryEntry, error) {
			return []store.StatusHistoryEntry{
				{JobID: jobID, ToStatus: "Technician Work Completed", ChangedAt: time.Now()},
				{JobID: jobID, ToStatus: "vhc_completed", ChangedAt: time.Now()},
				{JobID: jobID, ToStatus: "pricing_completed", ChangedAt: time.Now()},
			}, nil
		},
	})
	missing, err := policy.InvoicingPrerequisites(context.Background(), 42)
	if err != nil {
		t.Fatalf("prerequisites: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("missing = %v, want none", missing)
	}
}

func TestCompletionPrerequisite(t *testing.T) {
	withInvoice := testPolicy(&fakePolicyStore{
		latestInvoice: func(ctx context.Context, jobID int64) (*store.Invoice, error) {
			return &store.Invoice{JobID: jobID, Number: "INV-7", RaisedAt: time.Now()}, nil
		},
	})
	ok, err := withInvoice.CompletionPrerequisite(context.Background(), 42)
	if err != nil || !ok {
		t.Fatalf("want satisfied prerequisite, got ok=%v err=%v", ok, err)
	}

	without := testPolicy(&fakePolicyStore{})
	ok, err = without.CompletionPrerequisite(context.Background(), 42)
	if err != nil || ok {
		t.Fatalf("want unmet prerequisite, got ok=%v err=%v", ok, err)
	}
}
