// Package ledger keeps the shop's append-only cash drawer log and answers
// per-business-day balance queries over it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldpos/backend/internal/calc"
	"goldpos/backend/internal/domain"
	"goldpos/backend/internal/xid"
)

var (
	ErrInitialAlreadySet = errors.New("initial cash already set for this business day")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrMissingActor      = errors.New("actor is required")
	ErrAdminRequired     = errors.New("admin role required")
)

// Store is the persistence the ledger needs. Reads must return a consistent
// snapshot of the log.
type Store interface {
	AppendCashEntry(ctx context.Context, entry domain.CashEntry) (*domain.CashEntry, error)
	ListCashEntries(ctx context.Context, from time.Time, to time.Time) ([]domain.CashEntry, error)
	AppendDayMarker(ctx context.Context, marker domain.DayMarker) (*domain.DayMarker, error)
	ListDayMarkers(ctx context.Context, from time.Time, to time.Time) ([]domain.DayMarker, error)
	ListInvoices(ctx context.Context, from time.Time, to time.Time) ([]domain.Invoice, error)
}

type Ledger struct {
	store    Store
	locker   Locker
	calendar Calendar
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Ledger)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store Store, locker Locker, calendar Calendar, log *zap.Logger, opts ...Option) *Ledger {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		store:    store,
		locker:   locker,
		calendar: calendar,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Calendar() Calendar {
	return l.calendar
}

// Today is the business day containing the ledger clock's current instant.
func (l *Ledger) Today() BusinessDay {
	return l.calendar.DayOf(l.now())
}

func (l *Ledger) AddInitial(ctx context.Context, actor domain.Actor, amount decimal.Decimal, note string) (domain.CashEntry, error) {
	return l.append(ctx, actor, domain.CashEntry{Type: domain.CashEntryInitial, Amount: amount, Note: note})
}

// AddBilling records cash paid out for a transaction.
func (l *Ledger) AddBilling(ctx context.Context, actor domain.Actor, amount decimal.Decimal, transactionRef string) (domain.CashEntry, error) {
	return l.append(ctx, actor, domain.CashEntry{Type: domain.CashEntryBilling, Amount: amount, TransactionRef: transactionRef})
}

// AddRemaining records a top-up into the drawer.
func (l *Ledger) AddRemaining(ctx context.Context, actor domain.Actor, amount decimal.Decimal, note string) (domain.CashEntry, error) {
	return l.append(ctx, actor, domain.CashEntry{Type: domain.CashEntryRemaining, Amount: amount, Note: note})
}

func (l *Ledger) AddExpense(ctx context.Context, actor domain.Actor, amount decimal.Decimal, note string) (domain.CashEntry, error) {
	return l.append(ctx, actor, domain.CashEntry{Type: domain.CashEntryExpense, Amount: amount, Note: note})
}

// ResetInitial lets a new initial entry be set for today. No entry is removed.
func (l *Ledger) ResetInitial(ctx context.Context, actor domain.Actor) (domain.DayMarker, error) {
	return l.mark(ctx, actor, domain.DayMarkerInitialReset)
}

// EndDay resets initial cash and starts a fresh view for the rest of the
// business day. History remains queryable.
func (l *Ledger) EndDay(ctx context.Context, actor domain.Actor) (domain.DayMarker, error) {
	return l.mark(ctx, actor, domain.DayMarkerDayEnd)
}

func (l *Ledger) append(ctx context.Context, actor domain.Actor, entry domain.CashEntry) (domain.CashEntry, error) {
	if err := validateActor(actor); err != nil {
		return domain.CashEntry{}, err
	}
	if !entry.Amount.IsPositive() {
		return domain.CashEntry{}, ErrInvalidAmount
	}

	now := l.now()
	day := l.calendar.DayOf(now)
	unlock, err := l.locker.Lock(ctx, day.Key())
	if err != nil {
		return domain.CashEntry{}, fmt.Errorf("lock ledger %s: %w", day.Key(), err)
	}
	defer l.unlock(ctx, day, unlock)

	if entry.Type == domain.CashEntryInitial && !actor.IsAdmin() {
		view, err := l.load(ctx, day)
		if err != nil {
			return domain.CashEntry{}, err
		}
		if view.InitialSet {
			return domain.CashEntry{}, ErrInitialAlreadySet
		}
	}

	entry.ID = xid.New("cash")
	entry.AddedBy = actor.Username
	entry.AddedByRole = actor.Role
	entry.Note = strings.TrimSpace(entry.Note)
	entry.CreatedAt = now.UTC()

	saved, err := l.store.AppendCashEntry(ctx, entry)
	if err != nil {
		return domain.CashEntry{}, err
	}
	l.log.Info("cash entry appended",
		zap.String("business_day", day.Key()),
		zap.String("type", string(saved.Type)),
		zap.String("amount", saved.Amount.StringFixed(2)),
		zap.String("by", saved.AddedBy),
	)
	return *saved, nil
}

func (l *Ledger) mark(ctx context.Context, actor domain.Actor, kind domain.DayMarkerKind) (domain.DayMarker, error) {
	if err := validateActor(actor); err != nil {
		return domain.DayMarker{}, err
	}
	if !actor.IsAdmin() {
		return domain.DayMarker{}, ErrAdminRequired
	}

	now := l.now()
	day := l.calendar.DayOf(now)
	unlock, err := l.locker.Lock(ctx, day.Key())
	if err != nil {
		return domain.DayMarker{}, fmt.Errorf("lock ledger %s: %w", day.Key(), err)
	}
	defer l.unlock(ctx, day, unlock)

	saved, err := l.store.AppendDayMarker(ctx, domain.DayMarker{
		ID:          xid.New("mark"),
		Kind:        kind,
		BusinessDay: day.Key(),
		CreatedBy:   actor.Username,
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		return domain.DayMarker{}, err
	}
	l.log.Info("ledger marker appended", zap.String("business_day", day.Key()), zap.String("kind", string(kind)), zap.String("by", actor.Username))
	return *saved, nil
}

func (l *Ledger) unlock(ctx context.Context, day BusinessDay, unlock func(context.Context) error) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		l.log.Warn("ledger unlock failed", zap.String("business_day", day.Key()), zap.Error(err))
	}
}

// Query summarizes one business day.
func (l *Ledger) Query(ctx context.Context, day BusinessDay) (View, error) {
	view, err := l.load(ctx, day)
	if err != nil {
		return View{}, err
	}
	invoices, err := l.store.ListInvoices(ctx, view.ViewStart, day.End)
	if err != nil {
		return View{}, err
	}
	view.Margin = Margin(invoices)
	return view, nil
}

// ViewStart is where today's transaction views begin: the latest day-end
// marker of the business day, or its start.
func (l *Ledger) ViewStart(ctx context.Context, day BusinessDay) (time.Time, error) {
	markers, err := l.store.ListDayMarkers(ctx, day.Start, day.End)
	if err != nil {
		return time.Time{}, err
	}
	dayEnd, _ := boundaries(day, markers)
	return dayEnd, nil
}

func (l *Ledger) load(ctx context.Context, day BusinessDay) (View, error) {
	entries, err := l.store.ListCashEntries(ctx, day.Start, day.End)
	if err != nil {
		return View{}, err
	}
	markers, err := l.store.ListDayMarkers(ctx, day.Start, day.End)
	if err != nil {
		return View{}, err
	}
	return Summarize(day, entries, markers), nil
}

func validateActor(actor domain.Actor) error {
	if strings.TrimSpace(actor.Username) == "" {
		return ErrMissingActor
	}
	return nil
}

// View is the drawer position for one business day.
type View struct {
	BusinessDay string             `json:"business_day"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	ViewStart   time.Time          `json:"view_start"`
	InitialSet  bool               `json:"initial_set"`
	Initial     decimal.Decimal    `json:"initial"`
	Remaining   decimal.Decimal    `json:"remaining"`
	Billing     decimal.Decimal    `json:"billing"`
	Expense     decimal.Decimal    `json:"expense"`
	Deductions  decimal.Decimal    `json:"deductions"`
	Balance     decimal.Decimal    `json:"balance"`
	Margin      MarginBreakdown    `json:"margin"`
	Entries     []domain.CashEntry `json:"entries"`
}

// boundaries returns the latest day-end instant and the latest instant at
// which initial cash was reset (either marker kind).
func boundaries(day BusinessDay, markers []domain.DayMarker) (time.Time, time.Time) {
	dayEnd := day.Start
	reset := day.Start
	for _, m := range markers {
		if !day.Contains(m.CreatedAt) {
			continue
		}
		switch m.Kind {
		case domain.DayMarkerDayEnd:
			if m.CreatedAt.After(dayEnd) {
				dayEnd = m.CreatedAt
			}
			if m.CreatedAt.After(reset) {
				reset = m.CreatedAt
			}
		case domain.DayMarkerInitialReset:
			if m.CreatedAt.After(reset) {
				reset = m.CreatedAt
			}
		}
	}
	return dayEnd, reset
}

// Summarize folds the day's entries. Initial cash counts from the latest
// reset; every other entry counts from the latest day end. Balance is
// initial + remaining - (billing + expense).
func Summarize(day BusinessDay, entries []domain.CashEntry, markers []domain.DayMarker) View {
	dayEnd, reset := boundaries(day, markers)
	view := View{
		BusinessDay: day.Key(),
		Start:       day.Start,
		End:         day.End,
		ViewStart:   dayEnd,
		Initial:     decimal.Zero,
		Remaining:   decimal.Zero,
		Billing:     decimal.Zero,
		Expense:     decimal.Zero,
		Entries:     make([]domain.CashEntry, 0, len(entries)),
	}

	for _, e := range entries {
		if !day.Contains(e.CreatedAt) {
			continue
		}
		amount := e.Amount
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		if e.Type == domain.CashEntryInitial {
			if e.CreatedAt.Before(reset) {
				continue
			}
			view.InitialSet = true
			view.Initial = view.Initial.Add(amount)
			view.Entries = append(view.Entries, e)
			continue
		}
		if e.CreatedAt.Before(dayEnd) {
			continue
		}
		switch e.Type {
		case domain.CashEntryRemaining:
			view.Remaining = view.Remaining.Add(amount)
		case domain.CashEntryBilling:
			view.Billing = view.Billing.Add(amount)
		case domain.CashEntryExpense:
			view.Expense = view.Expense.Add(amount)
		default:
			continue
		}
		view.Entries = append(view.Entries, e)
	}

	view.Deductions = view.Billing.Add(view.Expense)
	view.Balance = view.Initial.Add(view.Remaining).Sub(view.Deductions)
	return view
}

// MarginBreakdown is the shop's earnings by source.
type MarginBreakdown struct {
	Commission        decimal.Decimal `json:"commission"`
	PhysicalDeduction decimal.Decimal `json:"physical_deduction"`
	TakeOverProfit    decimal.Decimal `json:"takeover_profit"`
	Total             decimal.Decimal `json:"total"`
}

// Margin adds release commissions, the hidden per-gram deduction on physical
// purchases (gross value minus the amount actually paid, so overrides are
// reflected) and non-negative takeover profit.
func Margin(invoices []domain.Invoice) MarginBreakdown {
	m := MarginBreakdown{
		Commission:        decimal.Zero,
		PhysicalDeduction: decimal.Zero,
		TakeOverProfit:    decimal.Zero,
	}
	for _, inv := range invoices {
		switch inv.Kind {
		case domain.InvoiceKindPhysical:
			if inv.Physical == nil {
				continue
			}
			for _, item := range inv.Physical.Items {
				m.PhysicalDeduction = m.PhysicalDeduction.Add(item.GrossAmount.Sub(item.EffectiveAmount()))
			}
		case domain.InvoiceKindRelease:
			if inv.Release != nil {
				m.Commission = m.Commission.Add(inv.Release.CommissionAmount)
			}
		case domain.InvoiceKindTakeOver:
			if inv.TakeOver != nil {
				m.TakeOverProfit = m.TakeOverProfit.Add(calc.ReportableProfit(inv.TakeOver.ProfitLoss))
			}
		}
	}
	m.Total = m.Commission.Add(m.PhysicalDeduction).Add(m.TakeOverProfit)
	return m
}
