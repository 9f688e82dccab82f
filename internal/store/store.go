package store

import (
	"context"
	"errors"
	"time"

	"goldpos/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidRecord = errors.New("invalid record")
)

// Repository is the persistence collaborator. Time ranges are half open
// [from, to); a zero bound leaves that side open. Lists are ordered by
// creation time, oldest first, unless noted otherwise.
type Repository interface {
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceNo string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, from time.Time, to time.Time) ([]domain.Invoice, error)
	ListInvoiceNumbers(ctx context.Context, prefix string) ([]string, error)
	DeleteInvoice(ctx context.Context, invoiceNo string) error
	NextInvoiceSequence(ctx context.Context, dateKey string) (int64, error)

	AppendCashEntry(ctx context.Context, entry domain.CashEntry) (*domain.CashEntry, error)
	ListCashEntries(ctx context.Context, from time.Time, to time.Time) ([]domain.CashEntry, error)
	DeleteCashEntry(ctx context.Context, id string) (*domain.CashEntry, error)
	AppendDayMarker(ctx context.Context, marker domain.DayMarker) (*domain.DayMarker, error)
	ListDayMarkers(ctx context.Context, from time.Time, to time.Time) ([]domain.DayMarker, error)

	// SaveRateSnapshot assigns the next version and returns the stored row.
	SaveRateSnapshot(ctx context.Context, snapshot domain.RateSnapshot) (*domain.RateSnapshot, error)
	LatestRateSnapshot(ctx context.Context) (*domain.RateSnapshot, error)
	ListRateSnapshots(ctx context.Context, limit int) ([]domain.RateSnapshot, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	// ListAuditLogs is ordered newest first.
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// InRange reports whether t falls in [from, to) with zero bounds open.
func InRange(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// ValidateInvoice checks the envelope and that exactly the payload matching
// Kind is set.
func ValidateInvoice(invoice domain.Invoice) error {
	if invoice.InvoiceNo == "" || invoice.CreatedAt.IsZero() {
		return ErrInvalidRecord
	}
	set := 0
	for _, present := range []bool{invoice.Physical != nil, invoice.Release != nil, invoice.TakeOver != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return ErrInvalidRecord
	}
	switch invoice.Kind {
	case domain.InvoiceKindPhysical:
		if invoice.Physical == nil || len(invoice.Physical.Items) == 0 {
			return ErrInvalidRecord
		}
	case domain.InvoiceKindRelease:
		if invoice.Release == nil {
			return ErrInvalidRecord
		}
	case domain.InvoiceKindTakeOver:
		if invoice.TakeOver == nil {
			return ErrInvalidRecord
		}
	default:
		return ErrInvalidRecord
	}
	return nil
}
