package status

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"workshop/api/internal/catalog"
	"workshop/api/internal/store"
)

// expectedTransitions is the advisory adjacency table for the job lifecycle.
// Transitions outside it are logged, never blocked: operators must always be
// able to override the normal flow by hand.
var expectedTransitions = map[string][]string{
	catalog.JobBooked:     {catalog.JobCheckedIn, catalog.JobInProgress},
	catalog.JobCheckedIn:  {catalog.JobInProgress},
	catalog.JobInProgress: {catalog.JobInvoiced},
	catalog.JobInvoiced:   {catalog.JobComplete},
	catalog.JobComplete:   {},
}

// RequiredInvoicingSubStatuses are the history sub-statuses that must all be
// present before a job may move into the invoiced macro state.
var RequiredInvoicingSubStatuses = []string{
	"technician_work_completed",
	"vhc_completed",
	"pricing_completed",
}

type policyStore interface {
	ListStatusHistory(ctx context.Context, jobID int64) ([]store.StatusHistoryEntry, error)
	LatestInvoice(ctx context.Context, jobID int64) (*store.Invoice, error)
}

// Policy validates lifecycle transitions and completion prerequisites.
type Policy struct {
	store  policyStore
	logger *zap.Logger
}

func NewPolicy(dataStore *store.PostgresStore, logger *zap.Logger) *Policy {
	return &Policy{store: dataStore, logger: logger}
}

// CanTransition always permits the transition. It logs a warning when the
// pair is not in the adjacency table so unusual moves leave a trace.
func (p *Policy) CanTransition(current, next string) bool {
	allowed, known := expectedTransitions[current]
	if !known {
		p.logger.Warn("transition from unrecognized status",
			zap.String("from", current),
			zap.String("to", next))
		return true
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	if current != next {
		p.logger.Warn("transition outside expected flow",
			zap.String("from", current),
			zap.String("to", next))
	}
	return true
}

// InvoicingPrerequisites returns the sub-statuses still missing from the
// job's history before it may be invoiced. Empty means the job qualifies.
func (p *Policy) InvoicingPrerequisites(ctx context.Context, jobID int64) ([]string, error) {
	history, err := p.store.ListStatusHistory(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("invoicing prerequisites: %w", err)
	}
	recorded := make(map[string]struct{}, len(history))
	for _, entry := range history {
		if sub, ok := catalog.Timeline.Resolve(entry.ToStatus); ok {
			recorded[sub] = struct{}{}
		}
	}
	missing := make([]string, 0)
	for _, required := range RequiredInvoicingSubStatuses {
		if _, ok := recorded[required]; !ok {
			missing = append(missing, required)
		}
	}
	return missing, nil
}

// CompletionPrerequisite reports whether at least one invoice exists for the
// job, which the complete macro state requires.
func (p *Policy) CompletionPrerequisite(ctx context.Context, jobID int64) (bool, error) {
	invoice, err := p.store.LatestInvoice(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("completion prerequisite: %w", err)
	}
	return invoice != nil, nil
}
