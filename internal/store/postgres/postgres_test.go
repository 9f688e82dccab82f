package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldpos/backend/internal/domain"
	"goldpos/backend/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func releaseInvoice(at time.Time) domain.Invoice {
	return domain.Invoice{
		InvoiceNo:   "INV-240311-0001",
		Kind:        domain.InvoiceKindRelease,
		CustomerRef: "C-7",
		CreatedBy:   "staff",
		CreatedAt:   at,
		Release: &domain.ReleasePayload{
			Gold:              domain.GoldDetail{Purity: domain.Purity22K, GrossWeight: decimal.RequireFromString("20")},
			Bank:              domain.BankDetail{BankName: "Canara"},
			RenewalAmount:     decimal.RequireFromString("100000"),
			CommissionPercent: 3,
			CommissionAmount:  decimal.RequireFromString("3000"),
		},
	}
}

func TestCreateInvoice(t *testing.T) {
	t.Run("inserts envelope and payload", func(t *testing.T) {
		s, mock := newMockStore(t)
		at := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO invoices`)).
			WithArgs("INV-240311-0001", "release", "C-7", "", "staff", at, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := s.CreateInvoice(context.Background(), releaseInvoice(at))
		require.NoError(t, err)
		assert.Equal(t, "INV-240311-0001", created.InvoiceNo)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to conflict", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO invoices`)).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := s.CreateInvoice(context.Background(), releaseInvoice(time.Now()))
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("rejects payload not matching kind", func(t *testing.T) {
		s, _ := newMockStore(t)
		inv := releaseInvoice(time.Now())
		inv.Kind = domain.InvoiceKindTakeOver
		_, err := s.CreateInvoice(context.Background(), inv)
		assert.ErrorIs(t, err, store.ErrInvalidRecord)
	})
}

func TestGetInvoice(t *testing.T) {
	t.Run("decodes payload", func(t *testing.T) {
		s, mock := newMockStore(t)
		at := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
		inv := releaseInvoice(at)
		payload, err := json.Marshal(invoicePayload{Release: inv.Release})
		require.NoError(t, err)

		rows := sqlmock.NewRows([]string{"invoice_no", "kind", "customer_ref", "customer_name", "created_by", "created_at", "payload"}).
			AddRow(inv.InvoiceNo, "release", "C-7", "", "staff", at, payload)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM invoices`)).WithArgs(inv.InvoiceNo).WillReturnRows(rows)

		got, err := s.GetInvoice(context.Background(), inv.InvoiceNo)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceKindRelease, got.Kind)
		require.NotNil(t, got.Release)
		assert.Nil(t, got.Physical)
		assert.Equal(t, 3, got.Release.CommissionPercent)
		assert.True(t, got.Release.CommissionAmount.Equal(decimal.RequireFromString("3000")))
	})

	t.Run("maps no rows to not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM invoices`)).WillReturnError(sql.ErrNoRows)

		_, err := s.GetInvoice(context.Background(), "INV-000000-0000")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestListInvoiceNumbersUsesPrefix(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"invoice_no"}).AddRow("INV-240311-0001").AddRow("INV-240311-0002")
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE invoice_no LIKE $1`)).WithArgs("INV-240311-%").WillReturnRows(rows)

	numbers, err := s.ListInvoiceNumbers(context.Background(), "INV-240311-")
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-240311-0001", "INV-240311-0002"}, numbers)
}

func TestNextInvoiceSequenceUpserts(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (date_key)`)).
		WithArgs("240311").
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(int64(4)))

	seq, err := s.NextInvoiceSequence(context.Background(), "240311")
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)

	_, err = s.NextInvoiceSequence(context.Background(), " ")
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCashEntriesScansDecimals(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 3, 11, 4, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "entry_type", "amount", "added_by", "added_by_role", "transaction_ref", "note", "created_at"}).
		AddRow("cash-1", "initial", "1000.00", "staff", "employee", "", "", at).
		AddRow("cash-2", "billing", "300.50", "staff", "employee", "INV-240311-0001", "", at.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM cash_entries`)).
		WithArgs(openLower, openUpper).
		WillReturnRows(rows)

	entries, err := s.ListCashEntries(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.CashEntryBilling, entries[1].Type)
	assert.Equal(t, "300.50", entries[1].Amount.StringFixed(2))
	assert.Equal(t, "INV-240311-0001", entries[1].TransactionRef)
}

func TestAppendCashEntryValidates(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.AppendCashEntry(context.Background(), domain.CashEntry{Type: domain.CashEntryExpense, Amount: decimal.Zero, AddedBy: "staff"})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cash_entries`)).WillReturnResult(sqlmock.NewResult(0, 1))
	saved, err := s.AppendCashEntry(context.Background(), domain.CashEntry{Type: domain.CashEntryExpense, Amount: decimal.NewFromInt(50), AddedBy: "staff"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestDeleteCashEntryNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM cash_entries`)).WithArgs("cash-x").WillReturnError(sql.ErrNoRows)

	_, err := s.DeleteCashEntry(context.Background(), "cash-x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteInvoiceNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM invoices`)).WithArgs("INV-1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteInvoice(context.Background(), "INV-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRateSnapshots(t *testing.T) {
	t.Run("save returns assigned version", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO rate_snapshots`)).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(7)))

		saved, err := s.SaveRateSnapshot(context.Background(), domain.RateSnapshot{
			Rates:     domain.RateTable{domain.Purity22K: decimal.NewFromInt(6000)},
			UpdatedBy: "owner",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), saved.Version)
	})

	t.Run("latest decodes table", func(t *testing.T) {
		s, mock := newMockStore(t)
		rows := sqlmock.NewRows([]string{"version", "rates", "updated_by", "created_at"}).
			AddRow(int64(3), []byte(`{"22K":"6000","24K":"7200"}`), "owner", time.Now())
		mock.ExpectQuery(regexp.QuoteMeta(`FROM rate_snapshots`)).WillReturnRows(rows)

		latest, err := s.LatestRateSnapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), latest.Version)
		assert.True(t, latest.Rates[domain.Purity24K].Equal(decimal.NewFromInt(7200)))
	})

	t.Run("latest on empty table is not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM rate_snapshots`)).WillReturnError(sql.ErrNoRows)

		_, err := s.LatestRateSnapshot(context.Background())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("empty table rejected", func(t *testing.T) {
		s, _ := newMockStore(t)
		_, err := s.SaveRateSnapshot(context.Background(), domain.RateSnapshot{})
		assert.ErrorIs(t, err, store.ErrInvalidRecord)
	})
}

func TestCreateUserConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO app_users`)).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateUser(context.Background(), domain.UserAccount{Username: "Staff", Password: "hash"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `INV\_1\%`, escapeLike("INV_1%"))
}
