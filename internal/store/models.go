package store

import "time"

// Job is the mutable job-card row. Status is the raw legacy string exactly as
// stored; callers collapse it through the job catalog. The nullable workflow
// timestamps double as cheap derived-state flags.
type Job struct {
	ID                         int64
	JobNumber                  string
	VehicleReg                 string
	CustomerName               string
	Status                     string
	Source                     string
	VHCRequired                bool
	VHCCompletedAt             *time.Time
	VHCSentAt                  *time.Time
	AdditionalWorkAuthorizedAt *time.Time
	BookedAt                   *time.Time
	CheckedInAt                *time.Time
	UpdatedBy                  string
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// StatusHistoryEntry is an immutable, append-only status change fact. ToStatus
// may hold either a lifecycle status or a sub-status identifier; the ambiguity
// is resolved at read time, never at write time.
type StatusHistoryEntry struct {
	ID         int64
	JobID      int64
	FromStatus string
	ToStatus   string
	ChangedBy  string
	Reason     string
	ChangedAt  time.Time
}

type Invoice struct {
	ID         int64
	JobID      int64
	Number     string
	TotalPence int64
	Status     string
	RaisedAt   time.Time
	PaidAt     *time.Time
}

type PartLine struct {
	ID          int64
	JobID       int64
	Description string
	Status      string
	Quantity    int
	UpdatedAt   time.Time
}

type BookingRequest struct {
	ID          int64
	JobID       int64
	Source      string
	Notes       string
	RequestedAt time.Time
}

// TrackingEvent records a key or vehicle movement. Kind is "key" or "vehicle".
type TrackingEvent struct {
	ID         int64
	JobID      int64
	Kind       string
	Status     string
	Actor      string
	Location   string
	RecordedAt time.Time
}

type WriteUp struct {
	ID        int64
	JobID     int64
	Author    string
	Body      string
	CreatedAt time.Time
}

type ClockingSession struct {
	ID         int64
	JobID      int64
	Technician string
	ClockIn    time.Time
	ClockOut   *time.Time
}
