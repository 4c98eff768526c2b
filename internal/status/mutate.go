package status

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"workshop/api/internal/catalog"
	"workshop/api/internal/feed"
	"workshop/api/internal/store"
	"workshop/api/internal/util"
)

// ValidationError rejects a manual status update. Unlike the read path, the
// write path does not tolerate unknown vocabulary or unmet prerequisites.
type ValidationError struct {
	Code    string
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Result describes a successful manual update.
type Result struct {
	JobID      int64  `json:"jobId"`
	JobNumber  string `json:"jobNumber"`
	Kind       string `json:"kind"` // "status" or "event"
	FromStatus string `json:"fromStatus,omitempty"`
	ToStatus   string `json:"toStatus"`
	Label      string `json:"label"`
}

type mutationStore interface {
	GetJobByID(ctx context.Context, jobID int64) (store.Job, error)
	GetJobByNumber(ctx context.Context, jobNumber string) (store.Job, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status, updatedBy string) error
	AppendStatusHistory(ctx context.Context, entry store.StatusHistoryEntry) error
}

type activityPublisher interface {
	Publish(ctx context.Context, entry feed.Entry) error
}

// Service is the status write path. It consults the transition policy before
// persisting and appends the audit history entry best-effort afterwards.
type Service struct {
	store  mutationStore
	policy *Policy
	feed   activityPublisher
	logger *zap.Logger
}

// NewService wires the write path. The activity feed is optional; pass nil to
// run without one.
func NewService(dataStore *store.PostgresStore, policy *Policy, activityFeed *feed.RedisFeed, logger *zap.Logger) *Service {
	svc := &Service{store: dataStore, policy: policy, logger: logger}
	if activityFeed != nil {
		svc.feed = activityFeed
	}
	return svc
}

// ManualUpdate records an operator-driven status change. A target resolving
// in the job catalog moves the lifecycle; a target resolving in the timeline
// catalog appends a sub-status event without touching the job row. Anything
// else is rejected.
func (s *Service) ManualUpdate(ctx context.Context, identifier, target, actor, reason string) (Result, error) {
	job, err := resolveJob(ctx, s.store, identifier)
	if err != nil {
		return Result{}, err
	}

	if macro, ok := catalog.Job.Resolve(target); ok {
		return s.applyLifecycleUpdate(ctx, job, macro, actor, reason)
	}
	if sub, ok := catalog.Timeline.Resolve(target); ok {
		return s.applySubStatusEvent(ctx, job, sub, actor, reason)
	}
	return Result{}, &ValidationError{
		Code:    "UNKNOWN_STATUS",
		Message: fmt.Sprintf("status %q is not in the job or timeline vocabulary", target),
	}
}

func (s *Service) applyLifecycleUpdate(ctx context.Context, job store.Job, macro, actor, reason string) (Result, error) {
	currentMacro := job.Status
	if resolved, ok := catalog.Job.Resolve(job.Status); ok {
		currentMacro = resolved
	}
	s.policy.CanTransition(currentMacro, macro)

	switch macro {
	case catalog.JobInvoiced:
		missing, err := s.policy.InvoicingPrerequisites(ctx, job.ID)
		if err != nil {
			return Result{}, err
		}
		if len(missing) > 0 {
			return Result{}, &ValidationError{
				Code:    "MISSING_PREREQUISITES",
				Message: "job cannot be invoiced until all prerequisite stages are recorded",
				Missing: missing,
			}
		}
	case catalog.JobComplete:
		ok, err := s.policy.CompletionPrerequisite(ctx, job.ID)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, &ValidationError{
				Code:    "INVOICE_REQUIRED",
				Message: "job cannot be completed without an invoice",
			}
		}
	}

	if err := s.store.UpdateJobStatus(ctx, job.ID, macro, actor); err != nil {
		return Result{}, fmt.Errorf("manual update: %w", err)
	}

	// The audit row is best-effort: losing it is logged, never rolled back
	// into a failed mutation.
	if err := s.store.AppendStatusHistory(ctx, store.StatusHistoryEntry{
		JobID:      job.ID,
		FromStatus: job.Status,
		ToStatus:   macro,
		ChangedBy:  actor,
		Reason:     reason,
		ChangedAt:  time.Now(),
	}); err != nil {
		s.logger.Error("audit append failed after status update",
			zap.Int64("job_id", job.ID),
			zap.String("to_status", macro),
			zap.Error(err))
	}

	result := Result{
		JobID:      job.ID,
		JobNumber:  job.JobNumber,
		Kind:       "status",
		FromStatus: job.Status,
		ToStatus:   macro,
		Label:      catalog.Job.Label(macro),
	}
	s.publish(ctx, result, actor, reason)
	return result, nil
}

func (s *Service) applySubStatusEvent(ctx context.Context, job store.Job, sub, actor, reason string) (Result, error) {
	// Sub-status events live only in history; the job row keeps its status.
	if err := s.store.AppendStatusHistory(ctx, store.StatusHistoryEntry{
		JobID:      job.ID,
		FromStatus: job.Status,
		ToStatus:   sub,
		ChangedBy:  actor,
		Reason:     reason,
		ChangedAt:  time.Now(),
	}); err != nil {
		return Result{}, fmt.Errorf("record sub-status: %w", err)
	}

	result := Result{
		JobID:     job.ID,
		JobNumber: job.JobNumber,
		Kind:      "event",
		ToStatus:  sub,
		Label:     catalog.Timeline.Label(sub),
	}
	s.publish(ctx, result, actor, reason)
	return result, nil
}

func (s *Service) publish(ctx context.Context, result Result, actor, reason string) {
	if s.feed == nil {
		return
	}
	entry := feed.Entry{
		ID:         util.NewID("act"),
		JobID:      result.JobID,
		JobNumber:  result.JobNumber,
		Status:     result.ToStatus,
		Label:      result.Label,
		Actor:      actor,
		Reason:     reason,
		OccurredAt: time.Now(),
	}
	if err := s.feed.Publish(ctx, entry); err != nil {
		s.logger.Warn("activity feed publish failed",
			zap.Int64("job_id", result.JobID),
			zap.Error(err))
	}
}
