package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const jobColumns = `
	id, job_number, vehicle_reg, customer_name, status, source, vhc_required,
	vhc_completed_at, vhc_sent_at, additional_work_authorized_at,
	booked_at, checked_in_at, updated_by_name, created_at, updated_at
`

func scanJob(row *sql.Row) (Job, error) {
	var job Job
	err := row.Scan(
		&job.ID,
		&job.JobNumber,
		&job.VehicleReg,
		&job.CustomerName,
		&job.Status,
		&job.Source,
		&job.VHCRequired,
		&job.VHCCompletedAt,
		&job.VHCSentAt,
		&job.AdditionalWorkAuthorizedAt,
		&job.BookedAt,
		&job.CheckedInAt,
		&job.UpdatedBy,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	return job, err
}

func (s *PostgresStore) GetJobByID(ctx context.Context, jobID int64) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, jobID)
	return scanJob(row)
}

func (s *PostgresStore) GetJobByNumber(ctx context.Context, jobNumber string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_number=$1`, jobNumber)
	return scanJob(row)
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID int64, status, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status=$2, updated_by_name=$3, updated_at=NOW()
		WHERE id=$1
	`, jobID, status, updatedBy)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStatusHistory(ctx context.Context, jobID int64) ([]StatusHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, from_status, to_status, changed_by_name, reason, changed_at
		FROM job_status_history
		WHERE job_id=$1
		ORDER BY changed_at ASC, id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	items := make([]StatusHistoryEntry, 0)
	for rows.Next() {
		var item StatusHistoryEntry
		if err := rows.Scan(&item.ID, &item.JobID, &item.FromStatus, &item.ToStatus, &item.ChangedBy, &item.Reason, &item.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return items, nil
}

// AppendStatusHistory writes one immutable history row. Rows are never
// updated or deleted after insert.
func (s *PostgresStore) AppendStatusHistory(ctx context.Context, entry StatusHistoryEntry) error {
	changedAt := entry.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_status_history (job_id, from_status, to_status, changed_by_name, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.JobID, entry.FromStatus, entry.ToStatus, entry.ChangedBy, entry.Reason, changedAt)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

func (s *PostgresStore) VHCCheckCount(ctx context.Context, jobID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vhc_checks WHERE job_id=$1`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count vhc checks: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) LatestVHCAuthorization(ctx context.Context, jobID int64) (*time.Time, error) {
	return s.latestTimestamp(ctx, `
		SELECT authorized_at FROM vhc_authorizations
		WHERE job_id=$1
		ORDER BY authorized_at DESC
		LIMIT 1
	`, jobID, "latest vhc authorization")
}

func (s *PostgresStore) LatestVHCDeclination(ctx context.Context, jobID int64) (*time.Time, error) {
	return s.latestTimestamp(ctx, `
		SELECT declined_at FROM vhc_declinations
		WHERE job_id=$1
		ORDER BY declined_at DESC
		LIMIT 1
	`, jobID, "latest vhc declination")
}

func (s *PostgresStore) latestTimestamp(ctx context.Context, query string, jobID int64, label string) (*time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return &ts, nil
}

func (s *PostgresStore) LatestInvoice(ctx context.Context, jobID int64) (*Invoice, error) {
	var item Invoice
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, invoice_number, total_pence, status, raised_at, paid_at
		FROM invoices
		WHERE job_id=$1
		ORDER BY raised_at DESC
		LIMIT 1
	`, jobID).Scan(&item.ID, &item.JobID, &item.Number, &item.TotalPence, &item.Status, &item.RaisedAt, &item.PaidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest invoice: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) ListPartLines(ctx context.Context, jobID int64) ([]PartLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, description, status, quantity, updated_at
		FROM part_lines
		WHERE job_id=$1
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list part lines: %w", err)
	}
	defer rows.Close()

	items := make([]PartLine, 0)
	for rows.Next() {
		var item PartLine
		if err := rows.Scan(&item.ID, &item.JobID, &item.Description, &item.Status, &item.Quantity, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan part line: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate part lines: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBookingRequest(ctx context.Context, jobID int64) (*BookingRequest, error) {
	var item BookingRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, source, notes, requested_at
		FROM booking_requests
		WHERE job_id=$1
		ORDER BY requested_at DESC
		LIMIT 1
	`, jobID).Scan(&item.ID, &item.JobID, &item.Source, &item.Notes, &item.RequestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking request: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) LatestTrackingEvent(ctx context.Context, jobID int64, kind string) (*TrackingEvent, error) {
	var item TrackingEvent
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, kind, status, actor_name, location, recorded_at
		FROM tracking_events
		WHERE job_id=$1 AND kind=$2
		ORDER BY recorded_at DESC
		LIMIT 1
	`, jobID, kind).Scan(&item.ID, &item.JobID, &item.Kind, &item.Status, &item.Actor, &item.Location, &item.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest tracking event: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) LatestWriteUp(ctx context.Context, jobID int64) (*WriteUp, error) {
	var item WriteUp
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, author_name, body, created_at
		FROM write_ups
		WHERE job_id=$1
		ORDER BY created_at DESC
		LIMIT 1
	`, jobID).Scan(&item.ID, &item.JobID, &item.Author, &item.Body, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest write-up: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) ListClockingSessions(ctx context.Context, jobID int64) ([]ClockingSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, technician_name, clock_in, clock_out
		FROM clocking_sessions
		WHERE job_id=$1
		ORDER BY clock_in ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list clocking sessions: %w", err)
	}
	defer rows.Close()

	items := make([]ClockingSession, 0)
	for rows.Next() {
		var item ClockingSession
		if err := rows.Scan(&item.ID, &item.JobID, &item.Technician, &item.ClockIn, &item.ClockOut); err != nil {
			return nil, fmt.Errorf("scan clocking session: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clocking sessions: %w", err)
	}
	return items, nil
}
