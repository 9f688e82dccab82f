package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"goldpos/backend/internal/domain"
	"goldpos/backend/internal/store"
	"goldpos/backend/internal/xid"
)

//go:embed schema.sql
var schema string

var (
	openLower = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	openUpper = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates any missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type invoicePayload struct {
	Physical *domain.PhysicalPayload `json:"physical,omitempty"`
	Release  *domain.ReleasePayload  `json:"release,omitempty"`
	TakeOver *domain.TakeOverPayload `json:"takeover,omitempty"`
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if err := store.ValidateInvoice(invoice); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(invoicePayload{Physical: invoice.Physical, Release: invoice.Release, TakeOver: invoice.TakeOver})
	if err != nil {
		return nil, fmt.Errorf("encode invoice payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (invoice_no, kind, customer_ref, customer_name, created_by, created_at, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, invoice.InvoiceNo, string(invoice.Kind), invoice.CustomerRef, invoice.CustomerName, invoice.CreatedBy, invoice.CreatedAt, payload)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := invoice
	return &created, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		invoice domain.Invoice
		kind    string
		raw     []byte
	)
	if err := row.Scan(&invoice.InvoiceNo, &kind, &invoice.CustomerRef, &invoice.CustomerName, &invoice.CreatedBy, &invoice.CreatedAt, &raw); err != nil {
		return domain.Invoice{}, err
	}
	var payload invoicePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Invoice{}, fmt.Errorf("decode invoice %s payload: %w", invoice.InvoiceNo, err)
	}
	invoice.Kind = domain.InvoiceKind(kind)
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	invoice.Physical = payload.Physical
	invoice.Release = payload.Release
	invoice.TakeOver = payload.TakeOver
	return invoice, nil
}

func (s *Store) GetInvoice(ctx context.Context, invoiceNo string) (*domain.Invoice, error) {
	invoice, err := scanInvoice(s.db.QueryRowContext(ctx, `
		SELECT invoice_no, kind, customer_ref, customer_name, created_by, created_at, payload
		FROM invoices
		WHERE invoice_no = $1
	`, invoiceNo))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) ListInvoices(ctx context.Context, from time.Time, to time.Time) ([]domain.Invoice, error) {
	lower, upper := bounds(from, to)
	rows, err := s.db.QueryContext(ctx, `
		SELECT invoice_no, kind, customer_ref, customer_name, created_by, created_at, payload
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, invoice_no ASC
	`, lower, upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 64)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) ListInvoiceNumbers(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT invoice_no
		FROM invoices
		WHERE invoice_no LIKE $1
		ORDER BY invoice_no ASC
	`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	numbers := make([]string, 0, 16)
	for rows.Next() {
		var no string
		if err := rows.Scan(&no); err != nil {
			return nil, err
		}
		numbers = append(numbers, no)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return numbers, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, invoiceNo string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE invoice_no = $1`, invoiceNo)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// NextInvoiceSequence increments the per-date counter atomically.
func (s *Store) NextInvoiceSequence(ctx context.Context, dateKey string) (int64, error) {
	if strings.TrimSpace(dateKey) == "" {
		return 0, store.ErrInvalidRecord
	}
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invoice_sequences (date_key, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (date_key)
		DO UPDATE SET last_seq = invoice_sequences.last_seq + 1
		RETURNING last_seq
	`, dateKey).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) AppendCashEntry(ctx context.Context, entry domain.CashEntry) (*domain.CashEntry, error) {
	if !entry.Type.Valid() || !entry.Amount.IsPositive() || entry.AddedBy == "" {
		return nil, store.ErrInvalidRecord
	}
	if entry.ID == "" {
		entry.ID = xid.New("cash")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_entries (id, entry_type, amount, added_by, added_by_role, transaction_ref, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, string(entry.Type), entry.Amount, entry.AddedBy, entry.AddedByRole, entry.TransactionRef, entry.Note, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := entry
	return &created, nil
}

func scanCashEntry(row rowScanner) (domain.CashEntry, error) {
	var (
		entry     domain.CashEntry
		entryType string
	)
	if err := row.Scan(&entry.ID, &entryType, &entry.Amount, &entry.AddedBy, &entry.AddedByRole, &entry.TransactionRef, &entry.Note, &entry.CreatedAt); err != nil {
		return domain.CashEntry{}, err
	}
	entry.Type = domain.CashEntryType(entryType)
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

func (s *Store) ListCashEntries(ctx context.Context, from time.Time, to time.Time) ([]domain.CashEntry, error) {
	lower, upper := bounds(from, to)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_type, amount, added_by, added_by_role, transaction_ref, note, created_at
		FROM cash_entries
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`, lower, upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashEntry, 0, 64)
	for rows.Next() {
		entry, err := scanCashEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) DeleteCashEntry(ctx context.Context, id string) (*domain.CashEntry, error) {
	entry, err := scanCashEntry(s.db.QueryRowContext(ctx, `
		DELETE FROM cash_entries
		WHERE id = $1
		RETURNING id, entry_type, amount, added_by, added_by_role, transaction_ref, note, created_at
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (s *Store) AppendDayMarker(ctx context.Context, marker domain.DayMarker) (*domain.DayMarker, error) {
	if marker.Kind != domain.DayMarkerDayEnd && marker.Kind != domain.DayMarkerInitialReset {
		return nil, store.ErrInvalidRecord
	}
	if marker.ID == "" {
		marker.ID = xid.New("mark")
	}
	if marker.CreatedAt.IsZero() {
		marker.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO day_markers (id, kind, business_day, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, marker.ID, string(marker.Kind), marker.BusinessDay, marker.CreatedBy, marker.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := marker
	return &created, nil
}

func (s *Store) ListDayMarkers(ctx context.Context, from time.Time, to time.Time) ([]domain.DayMarker, error) {
	lower, upper := bounds(from, to)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, business_day, created_by, created_at
		FROM day_markers
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`, lower, upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	markers := make([]domain.DayMarker, 0, 8)
	for rows.Next() {
		var (
			marker domain.DayMarker
			kind   string
		)
		if err := rows.Scan(&marker.ID, &kind, &marker.BusinessDay, &marker.CreatedBy, &marker.CreatedAt); err != nil {
			return nil, err
		}
		marker.Kind = domain.DayMarkerKind(kind)
		marker.CreatedAt = marker.CreatedAt.UTC()
		markers = append(markers, marker)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return markers, nil
}

func (s *Store) SaveRateSnapshot(ctx context.Context, snapshot domain.RateSnapshot) (*domain.RateSnapshot, error) {
	if len(snapshot.Rates) == 0 {
		return nil, store.ErrInvalidRecord
	}
	raw, err := json.Marshal(snapshot.Rates)
	if err != nil {
		return nil, fmt.Errorf("encode rates: %w", err)
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO rate_snapshots (rates, updated_by, created_at)
		VALUES ($1,$2,$3)
		RETURNING version
	`, raw, snapshot.UpdatedBy, snapshot.CreatedAt).Scan(&snapshot.Version)
	if err != nil {
		return nil, err
	}
	saved := snapshot
	saved.Rates = snapshot.Rates.Clone()
	return &saved, nil
}

func scanRateSnapshot(row rowScanner) (domain.RateSnapshot, error) {
	var (
		snapshot domain.RateSnapshot
		raw      []byte
	)
	if err := row.Scan(&snapshot.Version, &raw, &snapshot.UpdatedBy, &snapshot.CreatedAt); err != nil {
		return domain.RateSnapshot{}, err
	}
	if err := json.Unmarshal(raw, &snapshot.Rates); err != nil {
		return domain.RateSnapshot{}, fmt.Errorf("decode rate snapshot %d: %w", snapshot.Version, err)
	}
	snapshot.CreatedAt = snapshot.CreatedAt.UTC()
	return snapshot, nil
}

func (s *Store) LatestRateSnapshot(ctx context.Context) (*domain.RateSnapshot, error) {
	snapshot, err := scanRateSnapshot(s.db.QueryRowContext(ctx, `
		SELECT version, rates, updated_by, created_at
		FROM rate_snapshots
		ORDER BY version DESC
		LIMIT 1
	`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &snapshot, nil
}

func (s *Store) ListRateSnapshots(ctx context.Context, limit int) ([]domain.RateSnapshot, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, rates, updated_by, created_at
		FROM rate_snapshots
		ORDER BY version DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.RateSnapshot, 0, limit)
	for rows.Next() {
		snapshot, err := scanRateSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	lower, upper := bounds(from, to)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, lower, upper, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,true,$4,now())
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func bounds(from time.Time, to time.Time) (time.Time, time.Time) {
	if from.IsZero() {
		from = openLower
	}
	if to.IsZero() {
		to = openUpper
	}
	return from.UTC(), to.UTC()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ store.Repository = (*Store)(nil)
