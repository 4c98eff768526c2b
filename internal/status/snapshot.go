package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"workshop/api/internal/catalog"
	"workshop/api/internal/store"
)

// ErrNotFound is returned when a job identifier resolves to nothing. It is
// the only hard failure of a snapshot build.
var ErrNotFound = errors.New("job not found")

// TimelineEntry is the uniform shape every timeline item is converted into:
// lifecycle status changes, history sub-status events, and workflow rows all
// merge into one ascending list of these.
type TimelineEntry struct {
	Kind       string         `json:"kind"` // "status" or "event"
	Status     string         `json:"status"`
	Label      string         `json:"label"`
	Actor      string         `json:"actor,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Department string         `json:"department,omitempty"`
	Color      string         `json:"color,omitempty"`
	Icon       string         `json:"icon,omitempty"`
	At         time.Time      `json:"at"`
	Recognized bool           `json:"recognized"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// WorkflowStatus is the derived state of one side workflow.
type WorkflowStatus struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

// BlockingReason explains why a job cannot advance.
type BlockingReason struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Workflow string `json:"workflow"`
}

// ClockingSummary totals closed clocking sessions and surfaces the start
// times of open ones. Live elapsed time is the caller's sum of now minus each
// active clock-in; returning timestamps instead of a duration avoids
// staleness.
type ClockingSummary struct {
	CompletedSeconds int64       `json:"completedSeconds"`
	ActiveClockIns   []time.Time `json:"activeClockIns"`
}

// Snapshot is the derived, non-persisted aggregate view of one job. It is
// rebuilt from scratch on every read and has no identity beyond the request
// that produced it.
type Snapshot struct {
	JobID           int64                     `json:"jobId"`
	JobNumber       string                    `json:"jobNumber"`
	VehicleReg      string                    `json:"vehicleReg,omitempty"`
	CustomerName    string                    `json:"customerName,omitempty"`
	OverallStatus   string                    `json:"overallStatus"`
	OverallLabel    string                    `json:"overallLabel"`
	RawStatus       string                    `json:"rawStatus"`
	TechStatus      string                    `json:"techStatus"`
	TechLabel       string                    `json:"techLabel"`
	Workflows       map[string]WorkflowStatus `json:"workflows"`
	Timeline        []TimelineEntry           `json:"timeline"`
	BlockingReasons []BlockingReason          `json:"blockingReasons"`
	Clocking        ClockingSummary           `json:"clocking"`
	Warnings        []string                  `json:"warnings"`
	BuiltAt         time.Time                 `json:"builtAt"`
}

type snapshotStore interface {
	GetJobByID(ctx context.Context, jobID int64) (store.Job, error)
	GetJobByNumber(ctx context.Context, jobNumber string) (store.Job, error)
	ListStatusHistory(ctx context.Context, jobID int64) ([]store.StatusHistoryEntry, error)
	VHCCheckCount(ctx context.Context, jobID int64) (int, error)
	LatestVHCAuthorization(ctx context.Context, jobID int64) (*time.Time, error)
	LatestVHCDeclination(ctx context.Context, jobID int64) (*time.Time, error)
	LatestInvoice(ctx context.Context, jobID int64) (*store.Invoice, error)
	ListPartLines(ctx context.Context, jobID int64) ([]store.PartLine, error)
	GetBookingRequest(ctx context.Context, jobID int64) (*store.BookingRequest, error)
	LatestTrackingEvent(ctx context.Context, jobID int64, kind string) (*store.TrackingEvent, error)
	LatestWriteUp(ctx context.Context, jobID int64) (*store.WriteUp, error)
	ListClockingSessions(ctx context.Context, jobID int64) ([]store.ClockingSession, error)
}

// Builder assembles job snapshots.
type Builder struct {
	store  snapshotStore
	logger *zap.Logger
}

func NewBuilder(dataStore *store.PostgresStore, logger *zap.Logger) *Builder {
	return &Builder{store: dataStore, logger: logger}
}

// resolveJob accepts either a numeric primary key or an external job number.
// All-digit identifiers are tried as primary keys first, then fall back to
// the job-number lookup.
func resolveJob(ctx context.Context, st interface {
	GetJobByID(ctx context.Context, jobID int64) (store.Job, error)
	GetJobByNumber(ctx context.Context, jobNumber string) (store.Job, error)
}, identifier string) (store.Job, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return store.Job{}, ErrNotFound
	}
	if id, parseErr := strconv.ParseInt(trimmed, 10, 64); parseErr == nil {
		job, err := st.GetJobByID(ctx, id)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.Job{}, fmt.Errorf("get job by id: %w", err)
		}
	}
	job, err := st.GetJobByNumber(ctx, trimmed)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Job{}, ErrNotFound
	}
	if err != nil {
		return store.Job{}, fmt.Errorf("get job by number: %w", err)
	}
	return job, nil
}

// sourceResults carries the fan-out reads for one build.
type sourceResults struct {
	history       []store.StatusHistoryEntry
	vhcChecks     int
	vhcAuthorized *time.Time
	vhcDeclined   *time.Time
	invoice       *store.Invoice
	parts         []store.PartLine
	booking       *store.BookingRequest
	keyEvent      *store.TrackingEvent
	vehicleEvent  *store.TrackingEvent
	writeUp       *store.WriteUp
	clocking      []store.ClockingSession
}

// Build produces a fresh snapshot for the given identifier. The job-row fetch
// gates everything; the remaining reads run concurrently. A recoverable
// failure in any single source degrades that source to its zero value, while
// caller cancellation aborts the whole build.
func (b *Builder) Build(ctx context.Context, identifier string) (*Snapshot, error) {
	job, err := resolveJob(ctx, b.store, identifier)
	if err != nil {
		return nil, err
	}

	var res sourceResults
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.history, err = b.store.ListStatusHistory(gctx, job.ID)
		return b.degrade(gctx, job.ID, "status_history", err)
	})
	g.Go(func() error {
		var err error
		res.vhcChecks, err = b.store.VHCCheckCount(gctx, job.ID)
		return b.degrade(gctx, job.ID, "vhc_checks", err)
	})
	g.Go(func() error {
		var err error
		res.vhcAuthorized, err = b.store.LatestVHCAuthorization(gctx, job.ID)
		return b.degrade(gctx, job.ID, "vhc_authorizations", err)
	})
	g.Go(func() error {
		var err error
		res.vhcDeclined, err = b.store.LatestVHCDeclination(gctx, job.ID)
		return b.degrade(gctx, job.ID, "vhc_declinations", err)
	})
	g.Go(func() error {
		var err error
		res.invoice, err = b.store.LatestInvoice(gctx, job.ID)
		return b.degrade(gctx, job.ID, "invoices", err)
	})
	g.Go(func() error {
		var err error
		res.parts, err = b.store.ListPartLines(gctx, job.ID)
		return b.degrade(gctx, job.ID, "part_lines", err)
	})
	g.Go(func() error {
		var err error
		res.booking, err = b.store.GetBookingRequest(gctx, job.ID)
		return b.degrade(gctx, job.ID, "booking_requests", err)
	})
	g.Go(func() error {
		var err error
		res.keyEvent, err = b.store.LatestTrackingEvent(gctx, job.ID, "key")
		return b.degrade(gctx, job.ID, "key_tracking", err)
	})
	g.Go(func() error {
		var err error
		res.vehicleEvent, err = b.store.LatestTrackingEvent(gctx, job.ID, "vehicle")
		return b.degrade(gctx, job.ID, "vehicle_tracking", err)
	})
	g.Go(func() error {
		var err error
		res.writeUp, err = b.store.LatestWriteUp(gctx, job.ID)
		return b.degrade(gctx, job.ID, "write_ups", err)
	})
	g.Go(func() error {
		var err error
		res.clocking, err = b.store.ListClockingSessions(gctx, job.ID)
		return b.degrade(gctx, job.ID, "clocking_sessions", err)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("snapshot build: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// A partially assembled snapshot must never pass for a complete one.
		return nil, fmt.Errorf("snapshot build: %w", err)
	}

	warnings := newWarningSet()

	timeline := classifyHistory(res.history, warnings)
	if len(timeline) == 0 {
		timeline = append(timeline, synthesizeStatusEntry(job, warnings))
	}
	timeline = append(timeline, trackingEntries(res.keyEvent, res.vehicleEvent, warnings)...)
	timeline = append(timeline, bookingEntry(res.booking)...)
	timeline = append(timeline, clockingEntries(res.clocking)...)
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].At.Before(timeline[j].At)
	})

	overall, overallLabel := overallStatus(job, warnings)
	techStatus := deriveTechStatus(res.history, res.clocking)
	workflows := map[string]WorkflowStatus{
		"vhc":      deriveVHCWorkflow(job, res.vhcChecks, res.vhcAuthorized, res.vhcDeclined),
		"parts":    derivePartsWorkflow(res.parts, warnings),
		"invoice":  deriveInvoiceWorkflow(res.invoice),
		"tracking": deriveTrackingWorkflow(res.vehicleEvent, warnings),
		"writeup":  deriveWriteUpWorkflow(job, res.writeUp),
		"clocking": deriveClockingWorkflow(res.clocking),
	}

	snapshot := &Snapshot{
		JobID:           job.ID,
		JobNumber:       job.JobNumber,
		VehicleReg:      job.VehicleReg,
		CustomerName:    job.CustomerName,
		OverallStatus:   overall,
		OverallLabel:    overallLabel,
		RawStatus:       job.Status,
		TechStatus:      techStatus,
		TechLabel:       catalog.Tech.Label(techStatus),
		Workflows:       workflows,
		Timeline:        timeline,
		BlockingReasons: blockingReasons(job, overall, workflows, res.invoice, res.writeUp),
		Clocking:        summarizeClocking(res.clocking),
		Warnings:        warnings.list(),
		BuiltAt:         time.Now().UTC(),
	}
	return snapshot, nil
}

// degrade converts a recoverable per-source failure into a logged default.
// Cancellation is not recoverable: an incomplete build is a failure, not a
// degraded success.
func (b *Builder) degrade(ctx context.Context, jobID int64, source string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	b.logger.Warn("snapshot source degraded",
		zap.Int64("job_id", jobID),
		zap.String("source", source),
		zap.Error(err))
	return nil
}

// classifyHistory resolves each history row against both the timeline and job
// catalogs. The sub-status catalog wins, making the row an event; a job-catalog
// hit makes it a lifecycle status entry; anything else is kept verbatim with a
// normalization warning. Historical rows are never dropped.
func classifyHistory(history []store.StatusHistoryEntry, warnings *warningSet) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(history))
	for _, row := range history {
		if sub, ok := catalog.Timeline.Resolve(row.ToStatus); ok {
			meta := catalog.TimelineEventMeta(sub)
			entries = append(entries, TimelineEntry{
				Kind:       "event",
				Status:     sub,
				Label:      catalog.Timeline.Label(sub),
				Actor:      row.ChangedBy,
				Reason:     row.Reason,
				Department: meta.Department,
				Color:      meta.Color,
				Icon:       meta.Icon,
				At:         row.ChangedAt,
				Recognized: true,
			})
			continue
		}
		if macro, ok := catalog.Job.Resolve(row.ToStatus); ok {
			entries = append(entries, TimelineEntry{
				Kind:       "status",
				Status:     macro,
				Label:      catalog.Job.Label(macro),
				Actor:      row.ChangedBy,
				Reason:     row.Reason,
				At:         row.ChangedAt,
				Recognized: true,
				Meta:       map[string]any{"recordedStatus": row.ToStatus},
			})
			continue
		}
		warnings.add(fmt.Sprintf("unrecognized status %q in history", row.ToStatus))
		entries = append(entries, TimelineEntry{
			Kind:       "status",
			Status:     row.ToStatus,
			Label:      row.ToStatus,
			Actor:      row.ChangedBy,
			Reason:     row.Reason,
			At:         row.ChangedAt,
			Recognized: false,
		})
	}
	return entries
}

// synthesizeStatusEntry guarantees a non-empty timeline for jobs predating
// the history table by deriving one entry from the mutable status column.
func synthesizeStatusEntry(job store.Job, warnings *warningSet) TimelineEntry {
	at := job.UpdatedAt
	if at.IsZero() {
		at = job.CreatedAt
	}
	if macro, ok := catalog.Job.Resolve(job.Status); ok {
		return TimelineEntry{
			Kind:       "status",
			Status:     macro,
			Label:      catalog.Job.Label(macro),
			Actor:      job.UpdatedBy,
			At:         at,
			Recognized: true,
			Meta:       map[string]any{"recordedStatus": job.Status, "synthesized": true},
		}
	}
	warnings.add(fmt.Sprintf("unrecognized status %q on job row", job.Status))
	return TimelineEntry{
		Kind:       "status",
		Status:     job.Status,
		Label:      job.Status,
		Actor:      job.UpdatedBy,
		At:         at,
		Recognized: false,
		Meta:       map[string]any{"synthesized": true},
	}
}

func trackingEntries(keyEvent, vehicleEvent *store.TrackingEvent, warnings *warningSet) []TimelineEntry {
	entries := make([]TimelineEntry, 0, 2)
	for _, event := range []*store.TrackingEvent{keyEvent, vehicleEvent} {
		if event == nil {
			continue
		}
		status, label := event.Status, event.Status
		recognized := false
		if canonical, ok := catalog.Tracking.Resolve(event.Status); ok {
			status, label, recognized = canonical, catalog.Tracking.Label(canonical), true
		} else {
			warnings.add(fmt.Sprintf("unrecognized tracking status %q", event.Status))
		}
		meta := map[string]any{"kind": event.Kind}
		if event.Location != "" {
			meta["location"] = event.Location
		}
		entries = append(entries, TimelineEntry{
			Kind:       "event",
			Status:     status,
			Label:      label,
			Actor:      event.Actor,
			Department: "front-of-house",
			Color:      "slate",
			Icon:       "map-pin",
			At:         event.RecordedAt,
			Recognized: recognized,
			Meta:       meta,
		})
	}
	return entries
}

func bookingEntry(booking *store.BookingRequest) []TimelineEntry {
	if booking == nil {
		return nil
	}
	return []TimelineEntry{{
		Kind:       "event",
		Status:     "booking_requested",
		Label:      "Booking Requested",
		Department: "front-of-house",
		Color:      "blue",
		Icon:       "calendar",
		At:         booking.RequestedAt,
		Recognized: true,
		Meta:       map[string]any{"source": booking.Source},
	}}
}

func clockingEntries(sessions []store.ClockingSession) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(sessions)*2)
	for _, session := range sessions {
		entries = append(entries, TimelineEntry{
			Kind:       "event",
			Status:     "clocked_in",
			Label:      catalog.Clocking.Label("clocked_in"),
			Actor:      session.Technician,
			Department: "workshop",
			Color:      "blue",
			Icon:       "clock",
			At:         session.ClockIn,
			Recognized: true,
		})
		if session.ClockOut == nil || session.ClockOut.Before(session.ClockIn) {
			continue
		}
		entries = append(entries, TimelineEntry{
			Kind:       "event",
			Status:     "clocked_out",
			Label:      catalog.Clocking.Label("clocked_out"),
			Actor:      session.Technician,
			Department: "workshop",
			Color:      "grey",
			Icon:       "clock",
			At:         *session.ClockOut,
			Recognized: true,
		})
	}
	return entries
}

func overallStatus(job store.Job, warnings *warningSet) (string, string) {
	if macro, ok := catalog.Job.Resolve(job.Status); ok {
		return macro, catalog.Job.Label(macro)
	}
	warnings.add(fmt.Sprintf("unrecognized status %q on job row", job.Status))
	return job.Status, job.Status
}

func deriveTechStatus(history []store.StatusHistoryEntry, sessions []store.ClockingSession) string {
	for _, session := range sessions {
		if session.ClockOut == nil {
			return "working"
		}
	}
	for _, entry := range history {
		if sub, ok := catalog.Timeline.Resolve(entry.ToStatus); ok && sub == "technician_work_completed" {
			return "finished"
		}
	}
	if len(sessions) > 0 {
		return "paused"
	}
	return "not_started"
}

// deriveVHCWorkflow walks the precedence table using timestamp presence only:
// declined > authorised > sent > completed > in_progress > pending. The sent
// signal also honors a raw status column pointing at the sent stage, since
// older rows recorded the stage there instead of stamping vhc_sent_at.
func deriveVHCWorkflow(job store.Job, checkCount int, authorizedAt, declinedAt *time.Time) WorkflowStatus {
	sent := job.VHCSentAt != nil
	if !sent {
		switch catalog.Normalize(job.Status) {
		case "vhc_sent", "vhc_sent_to_customer":
			sent = true
		}
	}
	authorized := authorizedAt != nil || job.AdditionalWorkAuthorizedAt != nil

	switch {
	case declinedAt != nil:
		return vhcStatus("declined")
	case authorized:
		return vhcStatus("authorised")
	case sent:
		return vhcStatus("sent")
	case job.VHCCompletedAt != nil:
		return vhcStatus("completed")
	case checkCount > 0:
		return vhcStatus("in_progress")
	default:
		return vhcStatus("pending")
	}
}

func vhcStatus(id string) WorkflowStatus {
	return WorkflowStatus{Status: id, Label: catalog.VHC.Label(id)}
}

// derivePartsWorkflow buckets line-item statuses. A single item waiting for
// authorisation or on order forces blocked regardless of everything else.
func derivePartsWorkflow(parts []store.PartLine, warnings *warningSet) WorkflowStatus {
	if len(parts) == 0 {
		return WorkflowStatus{Status: "none", Label: "No Parts"}
	}
	counts := make(map[string]int, len(parts))
	for _, line := range parts {
		canonical, ok := catalog.Parts.Resolve(line.Status)
		if !ok {
			warnings.add(fmt.Sprintf("unrecognized part status %q", line.Status))
			canonical = "to_order"
		}
		counts[canonical]++
	}
	if counts["waiting_authorisation"] > 0 || counts["on_order"] > 0 {
		return WorkflowStatus{Status: "blocked", Label: "Parts Blocked"}
	}
	if counts["pre_picked"] == len(parts) {
		return WorkflowStatus{Status: "pre_picked", Label: "Parts Pre-Picked"}
	}
	if counts["arrived"]+counts["fitted"] == len(parts) {
		return WorkflowStatus{Status: "ready", Label: "Parts Ready"}
	}
	return WorkflowStatus{Status: "in_progress", Label: "Parts In Progress"}
}

func deriveInvoiceWorkflow(invoice *store.Invoice) WorkflowStatus {
	switch {
	case invoice == nil:
		return WorkflowStatus{Status: "none", Label: "Not Invoiced"}
	case invoice.PaidAt != nil:
		return WorkflowStatus{Status: "paid", Label: "Paid"}
	default:
		return WorkflowStatus{Status: "raised", Label: "Invoice Raised"}
	}
}

func deriveTrackingWorkflow(vehicleEvent *store.TrackingEvent, warnings *warningSet) WorkflowStatus {
	if vehicleEvent == nil {
		return WorkflowStatus{Status: "none", Label: "No Tracking"}
	}
	if canonical, ok := catalog.Tracking.Resolve(vehicleEvent.Status); ok {
		return WorkflowStatus{Status: canonical, Label: catalog.Tracking.Label(canonical)}
	}
	warnings.add(fmt.Sprintf("unrecognized tracking status %q", vehicleEvent.Status))
	return WorkflowStatus{Status: vehicleEvent.Status, Label: vehicleEvent.Status}
}

func deriveWriteUpWorkflow(job store.Job, writeUp *store.WriteUp) WorkflowStatus {
	if writeUp != nil {
		return WorkflowStatus{Status: "present", Label: "Write-Up Recorded"}
	}
	if job.Source == "warranty" {
		return WorkflowStatus{Status: "required", Label: "Write-Up Required"}
	}
	return WorkflowStatus{Status: "none", Label: "No Write-Up"}
}

func deriveClockingWorkflow(sessions []store.ClockingSession) WorkflowStatus {
	if len(sessions) == 0 {
		return WorkflowStatus{Status: "none", Label: "Not Clocked"}
	}
	for _, session := range sessions {
		if session.ClockOut == nil {
			return WorkflowStatus{Status: "active", Label: "Clocked In"}
		}
	}
	return WorkflowStatus{Status: "idle", Label: "Clocked Out"}
}

// summarizeClocking totals closed sessions and collects open session starts.
// Sessions with a clock-out before the clock-in contribute nothing: malformed
// data is ignored, never propagated as negative time.
func summarizeClocking(sessions []store.ClockingSession) ClockingSummary {
	summary := ClockingSummary{ActiveClockIns: make([]time.Time, 0)}
	for _, session := range sessions {
		if session.ClockIn.IsZero() {
			continue
		}
		if session.ClockOut == nil {
			summary.ActiveClockIns = append(summary.ActiveClockIns, session.ClockIn)
			continue
		}
		if session.ClockOut.Before(session.ClockIn) {
			continue
		}
		summary.CompletedSeconds += int64(session.ClockOut.Sub(session.ClockIn) / time.Second)
	}
	return summary
}

func blockingReasons(job store.Job, overall string, workflows map[string]WorkflowStatus, invoice *store.Invoice, writeUp *store.WriteUp) []BlockingReason {
	reasons := make([]BlockingReason, 0)
	vhc := workflows["vhc"]
	if job.VHCRequired && (vhc.Status == "pending" || vhc.Status == "in_progress") {
		reasons = append(reasons, BlockingReason{
			Code:     "VHC_INCOMPLETE",
			Message:  "Vehicle health check is required but has not been completed",
			Workflow: "vhc",
		})
	}
	if overall == catalog.JobComplete && invoice == nil {
		reasons = append(reasons, BlockingReason{
			Code:     "INVOICE_MISSING",
			Message:  "Job is marked complete but no invoice has been raised",
			Workflow: "invoice",
		})
	}
	if workflows["parts"].Status == "blocked" {
		reasons = append(reasons, BlockingReason{
			Code:     "PARTS_BLOCKED",
			Message:  "Parts are waiting for authorisation or on order",
			Workflow: "parts",
		})
	}
	if job.Source == "warranty" && writeUp == nil {
		reasons = append(reasons, BlockingReason{
			Code:     "WRITEUP_MISSING",
			Message:  "Warranty job has no technician write-up",
			Workflow: "writeup",
		})
	}
	return reasons
}

// warningSet deduplicates normalization warnings while preserving the order
// they were first raised in.
type warningSet struct {
	seen  map[string]struct{}
	items []string
}

func newWarningSet() *warningSet {
	return &warningSet{seen: make(map[string]struct{}), items: make([]string, 0)}
}

func (w *warningSet) add(message string) {
	if _, ok := w.seen[message]; ok {
		return
	}
	w.seen[message] = struct{}{}
	w.items = append(w.items, message)
}

func (w *warningSet) list() []string {
	return w.items
}
