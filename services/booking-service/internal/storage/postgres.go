package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
)

// DB is satisfied by *db.Pool and by pgxmock pools.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	db     DB
	outbox *outbox.Repository
}

func NewPostgres(db DB, outboxRepo *outbox.Repository) *Postgres {
	if outboxRepo == nil {
		outboxRepo = outbox.NewRepository()
	}
	return &Postgres{db: db, outbox: outboxRepo}
}

const appointmentColumns = `
	id::text, provider_id::text, service_id::text,
	COALESCE(user_id, ''), COALESCE(guest_name, ''), COALESCE(guest_phone, ''), COALESCE(guest_email, ''),
	appointment_date, start_minute, duration_minutes, status, booking_channel, priority,
	queue_position, estimated_wait_minutes, check_in_time, completed_time,
	COALESCE(notes, ''), COALESCE(cancellation_reason, ''), created_at, updated_at, seq`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a                         model.Appointment
		day                       time.Time
		start                     int
		status, channel, priority string
	)
	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.ServiceID,
		&a.Contact.UserID,
		&a.Contact.Name,
		&a.Contact.Phone,
		&a.Contact.Email,
		&day,
		&start,
		&a.DurationMinutes,
		&status,
		&channel,
		&priority,
		&a.QueuePosition,
		&a.EstimatedWaitMinutes,
		&a.CheckInTime,
		&a.CompletedTime,
		&a.Notes,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Seq,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = model.DateOf(day)
	a.StartTime = model.Clock(start)
	a.Status = model.Status(status)
	a.Channel = model.Channel(channel)
	a.Priority = model.Priority(priority)
	return a, nil
}

func listAppointments(ctx context.Context, q queryer, providerID string, date model.Date, forUpdate bool) ([]model.Appointment, error) {
	sql := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE provider_id = $1 AND appointment_date = $2
		ORDER BY created_at, seq`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, providerID, dateArg(date))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (p *Postgres) LoadAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(p.db.QueryRow(ctx, `SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1`, id))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, mapError(err))
	}
	return a, nil
}

func (p *Postgres) LoadAppointments(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	return listAppointments(ctx, p.db, providerID, date, false)
}

// InPartition serialises writers of one provider's day on a transaction-scoped
// advisory lock.
func (p *Postgres) InPartition(ctx context.Context, providerID string, date model.Date, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, partitionLockKey(providerID, date)); err != nil {
		return mapError(err)
	}
	if err := fn(ctx, &postgresTx{tx: tx, outbox: p.outbox}); err != nil {
		return err
	}
	return mapError(tx.Commit(ctx))
}

func partitionLockKey(providerID string, date model.Date) string {
	return "appointments:" + providerID + ":" + date.String()
}

type postgresTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *postgresTx) LoadAppointments(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	return listAppointments(ctx, t.tx, providerID, date, true)
}

func (t *postgresTx) CreateAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, provider_id, service_id, user_id, guest_name, guest_phone, guest_email,
			 appointment_date, start_minute, duration_minutes, status, booking_channel, priority,
			 queue_position, estimated_wait_minutes, notes, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			$8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), $17, $18)
	`, a.ID, a.ProviderID, a.ServiceID, a.Contact.UserID, a.Contact.Name, a.Contact.Phone, a.Contact.Email,
		dateArg(a.Date), int(a.StartTime), a.DurationMinutes, string(a.Status), string(a.Channel), string(a.Priority),
		a.QueuePosition, a.EstimatedWaitMinutes, a.Notes, a.CreatedAt, a.UpdatedAt)
	return mapError(err)
}

func (t *postgresTx) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			queue_position = $3,
			estimated_wait_minutes = $4,
			check_in_time = $5,
			completed_time = $6,
			cancellation_reason = NULLIF($7, ''),
			updated_at = $8
		WHERE id = $1
	`, a.ID, string(a.Status), a.QueuePosition, a.EstimatedWaitMinutes, a.CheckInTime, a.CompletedTime, a.CancelReason, a.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment %s", model.ErrNotFound, a.ID)
	}
	return nil
}

func (t *postgresTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (t *postgresTx) FindIdempotencyKey(ctx context.Context, providerID, key string) (string, bool, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		SELECT appointment_id::text
		FROM booking_idempotency_keys
		WHERE provider_id = $1 AND idempotency_key = $2
	`, providerID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (t *postgresTx) SaveIdempotencyKey(ctx context.Context, providerID, key, appointmentID string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (provider_id, idempotency_key, appointment_id)
		VALUES ($1, $2, $3)
	`, providerID, key, appointmentID)
	return mapError(err)
}

func (p *Postgres) SaveProvider(ctx context.Context, prov model.Provider) error {
	hours, err := json.Marshal(prov.WorkingHours)
	if err != nil {
		return fmt.Errorf("marshal working hours: %w", err)
	}
	holidays := make([]time.Time, 0, len(prov.Holidays))
	for _, d := range prov.Holidays {
		holidays = append(holidays, dateArg(d))
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO providers
			(id, name, timezone, working_hours, holidays,
			 allow_online_booking, allow_phone_booking, allow_walk_in, auto_confirm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name,
		              timezone = EXCLUDED.timezone,
		              working_hours = EXCLUDED.working_hours,
		              holidays = EXCLUDED.holidays,
		              allow_online_booking = EXCLUDED.allow_online_booking,
		              allow_phone_booking = EXCLUDED.allow_phone_booking,
		              allow_walk_in = EXCLUDED.allow_walk_in,
		              auto_confirm = EXCLUDED.auto_confirm,
		              updated_at = now()
	`, prov.ID, prov.Name, prov.Timezone, hours, holidays,
		prov.Settings.AllowOnlineBooking, prov.Settings.AllowPhoneBooking, prov.Settings.AllowWalkIn, prov.Settings.AutoConfirm)
	return mapError(err)
}

func (p *Postgres) LoadProvider(ctx context.Context, id string) (model.Provider, error) {
	var (
		prov     model.Provider
		hours    []byte
		holidays []time.Time
	)
	err := p.db.QueryRow(ctx, `
		SELECT id::text, name, timezone, working_hours, holidays,
			allow_online_booking, allow_phone_booking, allow_walk_in, auto_confirm,
			created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id).Scan(
		&prov.ID,
		&prov.Name,
		&prov.Timezone,
		&hours,
		&holidays,
		&prov.Settings.AllowOnlineBooking,
		&prov.Settings.AllowPhoneBooking,
		&prov.Settings.AllowWalkIn,
		&prov.Settings.AutoConfirm,
		&prov.CreatedAt,
		&prov.UpdatedAt,
	)
	if err != nil {
		return model.Provider{}, fmt.Errorf("provider %s: %w", id, mapError(err))
	}
	if err := json.Unmarshal(hours, &prov.WorkingHours); err != nil {
		return model.Provider{}, &model.ConfigError{Field: "working_hours", Value: string(hours), Err: err}
	}
	for _, h := range holidays {
		prov.Holidays = append(prov.Holidays, model.DateOf(h))
	}
	return prov, nil
}

const serviceColumns = `
	id::text, provider_id::text, name, duration_minutes, allowed_priorities,
	COALESCE(default_priority, ''), max_advance_days, allow_walk_in, created_at`

func scanService(row pgx.Row) (model.Service, error) {
	var (
		s          model.Service
		priorities []string
		def        string
	)
	if err := row.Scan(&s.ID, &s.ProviderID, &s.Name, &s.DurationMinutes, &priorities, &def, &s.MaxAdvanceDays, &s.AllowWalkIn, &s.CreatedAt); err != nil {
		return model.Service{}, err
	}
	for _, p := range priorities {
		s.AllowedPriorities = append(s.AllowedPriorities, model.Priority(p))
	}
	s.DefaultPriority = model.Priority(def)
	return s, nil
}

func (p *Postgres) SaveService(ctx context.Context, s model.Service) error {
	priorities := make([]string, 0, len(s.AllowedPriorities))
	for _, pr := range s.AllowedPriorities {
		priorities = append(priorities, string(pr))
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO services
			(id, provider_id, name, duration_minutes, allowed_priorities, default_priority, max_advance_days, allow_walk_in)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`, s.ID, s.ProviderID, s.Name, s.DurationMinutes, priorities, string(s.DefaultPriority), s.MaxAdvanceDays, s.AllowWalkIn)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: provider %s", model.ErrNotFound, s.ProviderID)
	}
	return mapError(err)
}

func (p *Postgres) LoadService(ctx context.Context, id string) (model.Service, error) {
	s, err := scanService(p.db.QueryRow(ctx, `SELECT`+serviceColumns+`
		FROM services
		WHERE id = $1`, id))
	if err != nil {
		return model.Service{}, fmt.Errorf("service %s: %w", id, mapError(err))
	}
	return s, nil
}

func (p *Postgres) ListServices(ctx context.Context, providerID string) ([]model.Service, error) {
	rows, err := p.db.Query(ctx, `SELECT`+serviceColumns+`
		FROM services
		WHERE provider_id = $1
		ORDER BY created_at, id`, providerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func dateArg(d model.Date) time.Time {
	return d.In(time.UTC)
}

// mapError translates driver errors into the booking error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %v", model.ErrPartitionConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return fmt.Errorf("%w: %s", model.ErrInvalidRequest, pgErr.Message)
	}
	return err
}

// IsConflict reports unique, exclusion, serialization and deadlock failures: the
// ways two writers of one partition can collide.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "23P01", "40001", "40P01":
		return true
	}
	return false
}

var _ booking.Store = (*Postgres)(nil)
