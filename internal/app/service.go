package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"workshop/api/internal/config"
	"workshop/api/internal/feed"
	"workshop/api/internal/status"
	"workshop/api/internal/store"
)

type UpdateStatusInput struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type snapshotBuilder interface {
	Build(ctx context.Context, identifier string) (*status.Snapshot, error)
}

type statusMutator interface {
	ManualUpdate(ctx context.Context, identifier, target, actor, reason string) (status.Result, error)
}

type activityFeed interface {
	Recent(ctx context.Context, limit int) ([]feed.Entry, error)
	Ping(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Service is the thin façade the HTTP layer talks to. All real work happens
// in the status engine; this layer maps engine errors onto the API taxonomy.
type Service struct {
	cfg       config.Config
	snapshots snapshotBuilder
	statuses  statusMutator
	feed      activityFeed
	db        pinger
}

func New(cfg config.Config, builder *status.Builder, mutator *status.Service, activityFeed *feed.RedisFeed, dataStore *store.PostgresStore) *Service {
	svc := &Service{
		cfg:       cfg,
		snapshots: builder,
		statuses:  mutator,
		db:        dataStore,
	}
	if activityFeed != nil {
		svc.feed = activityFeed
	}
	return svc
}

func (s *Service) Snapshot(ctx context.Context, identifier string) (*status.Snapshot, error) {
	snapshot, err := s.snapshots.Build(ctx, identifier)
	if errors.Is(err, status.ErrNotFound) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *Service) UpdateStatus(ctx context.Context, identifier string, input UpdateStatusInput) (map[string]any, error) {
	target := strings.TrimSpace(input.Status)
	if target == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status is required", nil)
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = "Unknown"
	}

	result, err := s.statuses.ManualUpdate(ctx, identifier, target, actor, strings.TrimSpace(input.Reason))
	if errors.Is(err, status.ErrNotFound) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	}
	var validationErr *status.ValidationError
	if errors.As(err, &validationErr) {
		var details any
		if len(validationErr.Missing) > 0 {
			details = map[string]any{"missing": validationErr.Missing}
		}
		return nil, domainError(http.StatusUnprocessableEntity, validationErr.Code, validationErr.Message, details)
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"success":    true,
		"jobId":      result.JobID,
		"jobNumber":  result.JobNumber,
		"kind":       result.Kind,
		"fromStatus": nilIfEmpty(result.FromStatus),
		"toStatus":   result.ToStatus,
		"label":      result.Label,
	}, nil
}

func (s *Service) Activity(ctx context.Context, limit int) (map[string]any, error) {
	if limit <= 0 {
		limit = s.cfg.ActivityLimit
	}
	items := make([]map[string]any, 0)
	if s.feed == nil {
		return map[string]any{"items": items}, nil
	}
	entries, err := s.feed.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":         entry.ID,
			"jobId":      entry.JobID,
			"jobNumber":  entry.JobNumber,
			"status":     entry.Status,
			"label":      entry.Label,
			"actor":      entry.Actor,
			"reason":     nilIfEmpty(entry.Reason),
			"occurredAt": entry.OccurredAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"items": items}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) PingFeed(ctx context.Context) error {
	if s.feed == nil {
		return nil
	}
	return s.feed.Ping(ctx)
}

func (s *Service) HasFeed() bool {
	return s.feed != nil
}

func (s *Service) CORSOrigin() string {
	return s.cfg.CORSOrigin
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
