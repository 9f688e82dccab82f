package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldpos/backend/internal/cache"
	"goldpos/backend/internal/calc"
	"goldpos/backend/internal/domain"
	"goldpos/backend/internal/invoiceno"
	"goldpos/backend/internal/ledger"
	"goldpos/backend/internal/rollup"
	"goldpos/backend/internal/store"
	"goldpos/backend/internal/valuation"
	"goldpos/backend/internal/xid"
)

var (
	ErrAdminRequired = ledger.ErrAdminRequired
	ErrMissingActor  = ledger.ErrMissingActor
	ErrInvalidInput  = errors.New("invalid input")
)

// invoiceAttempts bounds retries when a freshly issued number collides with
// a stored invoice.
const invoiceAttempts = 3

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Valuation valuation.Config
	Location  *time.Location
	// CutoffHour starts the business day. Nil selects the default.
	CutoffHour *int
	// Counter issues invoice sequences. Defaults to the repository.
	Counter invoiceno.Counter
	// Locker serializes ledger writes per business day. Defaults to an
	// in-process lock.
	Locker       ledger.Locker
	RateCache    cache.RateCache
	RateCacheTTL time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

type Service struct {
	repo     store.Repository
	valuator *valuation.Valuator
	numberer *invoiceno.Numberer
	ledger   *ledger.Ledger
	rates    cache.RateCache
	ratesTTL time.Duration
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	cutoffHour := ledger.DefaultCutoffHour
	if opts.CutoffHour != nil {
		cutoffHour = *opts.CutoffHour
	}
	if opts.Counter == nil {
		opts.Counter = repo
	}
	if opts.RateCache == nil {
		opts.RateCache = cache.NoopRateCache{}
	}
	if opts.RateCacheTTL <= 0 {
		opts.RateCacheTTL = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	calendar := ledger.NewCalendar(opts.Location, cutoffHour)
	return &Service{
		repo:     repo,
		valuator: valuation.New(opts.Valuation),
		numberer: invoiceno.NewNumberer(opts.Counter, opts.Location),
		ledger:   ledger.New(repo, opts.Locker, calendar, opts.Logger.Named("ledger"), ledger.WithClock(opts.Now)),
		rates:    opts.RateCache,
		ratesTTL: opts.RateCacheTTL,
		loc:      opts.Location,
		log:      opts.Logger,
		now:      opts.Now,
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.Username) == "" {
		return domain.Actor{}, ErrMissingActor
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !actor.IsAdmin() {
		return domain.Actor{}, ErrAdminRequired
	}
	return actor, nil
}

// CurrentRates returns the latest rate snapshot. An empty snapshot (version
// 0) is returned when none was ever saved; valuation then uses the fallback.
func (s *Service) CurrentRates(ctx context.Context) (domain.RateSnapshot, error) {
	cached, ok, err := s.rates.Get(ctx)
	if err != nil {
		s.log.Warn("rate cache read failed", zap.Error(err))
	}
	if ok && cached != nil {
		return *cached, nil
	}

	latest, err := s.repo.LatestRateSnapshot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.RateSnapshot{Rates: domain.RateTable{}}, nil
	}
	if err != nil {
		return domain.RateSnapshot{}, err
	}
	if err := s.rates.Set(ctx, latest, s.ratesTTL); err != nil {
		s.log.Warn("rate cache write failed", zap.Error(err))
	}
	return *latest, nil
}

// UpdateRates stores a new versioned snapshot. Past invoices keep the rate
// recorded on them.
func (s *Service) UpdateRates(ctx context.Context, req domain.RateUpdateRequest) (domain.RateSnapshot, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.RateSnapshot{}, err
	}
	if len(req.Rates) == 0 {
		return domain.RateSnapshot{}, fmt.Errorf("%w: at least one rate is required", ErrInvalidInput)
	}
	table := make(domain.RateTable, len(req.Rates))
	for purity, rate := range req.Rates {
		if !purity.Valid() {
			return domain.RateSnapshot{}, fmt.Errorf("%w: %q", valuation.ErrInvalidPurity, purity)
		}
		if !rate.IsPositive() {
			return domain.RateSnapshot{}, fmt.Errorf("%w: rate for %s must be greater than zero", ErrInvalidInput, purity)
		}
		table[purity] = rate
	}

	saved, err := s.repo.SaveRateSnapshot(ctx, domain.RateSnapshot{
		Rates:     table,
		UpdatedBy: actor.Username,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.RateSnapshot{}, err
	}
	// Write through. The cache refuses a lower version, so a reader that
	// loaded the previous snapshot cannot put it back.
	if err := s.rates.Set(ctx, saved, s.ratesTTL); err != nil {
		s.log.Warn("rate cache write failed", zap.Int64("version", saved.Version), zap.Error(err))
		if err := s.rates.Invalidate(ctx); err != nil {
			s.log.Warn("rate cache invalidate failed", zap.Error(err))
		}
	}

	missing := make([]string, 0)
	for _, purity := range domain.StandardPurities {
		if _, ok := table[purity]; !ok {
			missing = append(missing, string(purity))
		}
	}
	s.logAudit(ctx, "rates_update", "rate_snapshot", fmt.Sprintf("%d", saved.Version), fmt.Sprintf("purities=%d,missing=%s", len(table), strings.Join(missing, "|")))
	return *saved, nil
}

// AverageRate is the mean positive rate of the table, or the configured
// fallback.
func (s *Service) AverageRate(rates domain.RateTable) decimal.Decimal {
	return valuation.AverageRate(rates, s.valuator.FallbackRate())
}

func (s *Service) ListRateHistory(ctx context.Context, limit int) ([]domain.RateSnapshot, error) {
	if limit < 1 {
		limit = 20
	}
	return s.repo.ListRateSnapshots(ctx, limit)
}

// Valuate prices items at the current rates without persisting anything.
func (s *Service) Valuate(ctx context.Context, req domain.ValuationRequest) (valuation.Result, error) {
	snapshot, err := s.CurrentRates(ctx)
	if err != nil {
		return valuation.Result{}, err
	}
	return s.valuator.Valuate(lineItems(req.Items), snapshot.Rates)
}

// NextInvoiceNumber previews the next number from the invoices stored for
// today. It does not read or advance the sequence counter, so once the counter
// has moved past deleted or failed invoices the issued number can be higher
// than the preview.
func (s *Service) NextInvoiceNumber(ctx context.Context) (string, error) {
	now := s.now()
	existing, err := s.repo.ListInvoiceNumbers(ctx, invoiceno.DatePrefix(invoiceno.DateKey(now, s.loc)))
	if err != nil {
		return "", err
	}
	return invoiceno.Next(now, s.loc, existing)
}

type TransactionResult struct {
	Invoice   domain.Invoice      `json:"invoice"`
	CashEntry *domain.CashEntry   `json:"cash_entry,omitempty"`
	Warnings  []valuation.Warning `json:"warnings,omitempty"`
}

func (s *Service) CreateBilling(ctx context.Context, req domain.BillingRequest) (TransactionResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TransactionResult{}, err
	}
	snapshot, err := s.CurrentRates(ctx)
	if err != nil {
		return TransactionResult{}, err
	}
	valued, err := s.valuator.Valuate(lineItems(req.Items), snapshot.Rates)
	if err != nil {
		return TransactionResult{}, err
	}

	invoice := s.envelope(actor, domain.InvoiceKindPhysical, req.CustomerRef, req.CustomerName)
	invoice.Physical = &domain.PhysicalPayload{
		Items:            valued.Items,
		DeductionPerGram: s.valuator.DeductionPerGram(),
		TotalAmount:      valued.TotalAmount,
	}
	return s.record(ctx, actor, invoice, valued.Warnings)
}

func (s *Service) CreateRenewal(ctx context.Context, req domain.RenewalRequest) (TransactionResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TransactionResult{}, err
	}
	if strings.TrimSpace(req.Bank.BankName) == "" {
		return TransactionResult{}, fmt.Errorf("%w: bank name is required", ErrInvalidInput)
	}
	commission, err := calc.Commission(req.CommissionPercent, req.RenewalAmount)
	if err != nil {
		return TransactionResult{}, err
	}
	snapshot, err := s.CurrentRates(ctx)
	if err != nil {
		return TransactionResult{}, err
	}
	gold, _, warning, err := s.valuator.PriceGold(goldDetail(req.Gold), snapshot.Rates)
	if err != nil {
		return TransactionResult{}, err
	}

	invoice := s.envelope(actor, domain.InvoiceKindRelease, req.CustomerRef, req.CustomerName)
	invoice.Release = &domain.ReleasePayload{
		Gold:              gold,
		Bank:              trimBank(req.Bank),
		RenewalAmount:     valuation.RoundMoney(req.RenewalAmount),
		CommissionPercent: req.CommissionPercent,
		CommissionAmount:  commission,
	}
	return s.record(ctx, actor, invoice, warnings(warning))
}

func (s *Service) CreateTakeOver(ctx context.Context, req domain.TakeOverRequest) (TransactionResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TransactionResult{}, err
	}
	if strings.TrimSpace(req.Bank.BankName) == "" {
		return TransactionResult{}, fmt.Errorf("%w: bank name is required", ErrInvalidInput)
	}
	snapshot, err := s.CurrentRates(ctx)
	if err != nil {
		return TransactionResult{}, err
	}
	gold, marketValue, warning, err := s.valuator.PriceGold(goldDetail(req.Gold), snapshot.Rates)
	if err != nil {
		return TransactionResult{}, err
	}
	pl, err := calc.TakeOverProfitLoss(req.TakeoverAmount, marketValue)
	if err != nil {
		return TransactionResult{}, err
	}

	invoice := s.envelope(actor, domain.InvoiceKindTakeOver, req.CustomerRef, req.CustomerName)
	invoice.TakeOver = &domain.TakeOverPayload{
		Gold:           gold,
		Bank:           trimBank(req.Bank),
		TakeoverAmount: valuation.RoundMoney(req.TakeoverAmount),
		MarketValue:    marketValue,
		ProfitLoss:     pl.Signed,
	}
	return s.record(ctx, actor, invoice, warnings(warning))
}

func (s *Service) envelope(actor domain.Actor, kind domain.InvoiceKind, customerRef string, customerName string) domain.Invoice {
	return domain.Invoice{
		Kind:         kind,
		CustomerRef:  strings.TrimSpace(customerRef),
		CustomerName: strings.TrimSpace(customerName),
		CreatedBy:    actor.Username,
		CreatedAt:    s.now().UTC(),
	}
}

// record numbers and persists the invoice, then books the payout as a
// billing cash entry. The invoice is removed again if the cash entry cannot
// be written.
func (s *Service) record(ctx context.Context, actor domain.Actor, invoice domain.Invoice, warned []valuation.Warning) (TransactionResult, error) {
	created, err := s.persistInvoice(ctx, invoice)
	if err != nil {
		return TransactionResult{}, err
	}
	for _, w := range warned {
		s.log.Warn("valuation used fallback rate",
			zap.String("invoice_no", created.InvoiceNo),
			zap.String("purity", string(w.Purity)),
			zap.String("fallback_rate", w.FallbackRate.String()),
		)
	}

	result := TransactionResult{Invoice: *created, Warnings: warned}
	paid := created.PaidAmount()
	if paid.IsPositive() {
		entry, err := s.ledger.AddBilling(ctx, actor, paid, created.InvoiceNo)
		if err != nil {
			if delErr := s.repo.DeleteInvoice(context.WithoutCancel(ctx), created.InvoiceNo); delErr != nil {
				s.log.Error("invoice rollback failed", zap.String("invoice_no", created.InvoiceNo), zap.Error(delErr))
			}
			return TransactionResult{}, fmt.Errorf("book payout for %s: %w", created.InvoiceNo, err)
		}
		result.CashEntry = &entry
	}

	s.logAudit(ctx, "invoice_create", "invoice", created.InvoiceNo, fmt.Sprintf("kind=%s,paid=%s", created.Kind, paid.StringFixed(2)))
	return result, nil
}

func (s *Service) persistInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	prefix := invoiceno.DatePrefix(invoiceno.DateKey(invoice.CreatedAt, s.loc))
	var lastErr error
	for attempt := 0; attempt < invoiceAttempts; attempt++ {
		existing, err := s.repo.ListInvoiceNumbers(ctx, prefix)
		if err != nil {
			return nil, err
		}
		no, err := s.numberer.Next(ctx, invoice.CreatedAt, existing)
		if err != nil {
			return nil, err
		}
		invoice.InvoiceNo = no
		created, err := s.repo.CreateInvoice(ctx, invoice)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("allocate invoice number: %w", lastErr)
}

func (s *Service) GetInvoice(ctx context.Context, invoiceNo string) (domain.Invoice, error) {
	invoiceNo = strings.ToUpper(strings.TrimSpace(invoiceNo))
	if _, _, ok := invoiceno.Parse(invoiceNo); !ok {
		return domain.Invoice{}, fmt.Errorf("%w: invoice number %q", ErrInvalidInput, invoiceNo)
	}
	invoice, err := s.repo.GetInvoice(ctx, invoiceNo)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

// ListInvoices returns invoices of one business day, or all history when
// dayKey is empty. An empty kind matches every kind.
func (s *Service) ListInvoices(ctx context.Context, dayKey string, kind domain.InvoiceKind) ([]domain.Invoice, error) {
	var from, to time.Time
	if strings.TrimSpace(dayKey) != "" {
		day, err := s.ledger.Calendar().Day(dayKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		from, to = day.Start, day.End
	}
	invoices, err := s.repo.ListInvoices(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return filterKind(invoices, kind), nil
}

// TodayTransactions lists the current business day's invoices created after
// the latest day-end.
func (s *Service) TodayTransactions(ctx context.Context, kind domain.InvoiceKind) ([]domain.Invoice, error) {
	day := s.ledger.Today()
	start, err := s.ledger.ViewStart(ctx, day)
	if err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListInvoices(ctx, start, day.End)
	if err != nil {
		return nil, err
	}
	return filterKind(invoices, kind), nil
}

// DeleteInvoice removes an invoice from history and rollups. Cash entries
// booked for it are left in the ledger.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceNo string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	invoice, err := s.GetInvoice(ctx, invoiceNo)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteInvoice(ctx, invoice.InvoiceNo); err != nil {
		return err
	}
	s.logAudit(ctx, "invoice_delete", "invoice", invoice.InvoiceNo, fmt.Sprintf("kind=%s,paid=%s,created_by=%s", invoice.Kind, invoice.PaidAmount().StringFixed(2), invoice.CreatedBy))
	return nil
}

func (s *Service) AddInitial(ctx context.Context, req domain.CashAmountRequest) (domain.CashEntry, error) {
	return s.cashCommand(ctx, "cash_initial", req, s.ledger.AddInitial)
}

func (s *Service) AddRemaining(ctx context.Context, req domain.CashAmountRequest) (domain.CashEntry, error) {
	return s.cashCommand(ctx, "cash_remaining", req, s.ledger.AddRemaining)
}

func (s *Service) AddExpense(ctx context.Context, req domain.CashAmountRequest) (domain.CashEntry, error) {
	return s.cashCommand(ctx, "cash_expense", req, s.ledger.AddExpense)
}

type cashFunc func(ctx context.Context, actor domain.Actor, amount decimal.Decimal, note string) (domain.CashEntry, error)

func (s *Service) cashCommand(ctx context.Context, action string, req domain.CashAmountRequest, add cashFunc) (domain.CashEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CashEntry{}, err
	}
	entry, err := add(ctx, actor, valuation.RoundMoney(req.Amount), req.Note)
	if err != nil {
		return domain.CashEntry{}, err
	}
	s.logAudit(ctx, action, "cash_entry", entry.ID, fmt.Sprintf("amount=%s", entry.Amount.StringFixed(2)))
	return entry, nil
}

func (s *Service) ResetInitial(ctx context.Context) (domain.DayMarker, error) {
	return s.markerCommand(ctx, "cash_reset_initial", s.ledger.ResetInitial)
}

func (s *Service) EndDay(ctx context.Context) (domain.DayMarker, error) {
	return s.markerCommand(ctx, "cash_end_day", s.ledger.EndDay)
}

func (s *Service) markerCommand(ctx context.Context, action string, mark func(context.Context, domain.Actor) (domain.DayMarker, error)) (domain.DayMarker, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.DayMarker{}, err
	}
	marker, err := mark(ctx, actor)
	if err != nil {
		return domain.DayMarker{}, err
	}
	s.logAudit(ctx, action, "day_marker", marker.ID, "business_day="+marker.BusinessDay)
	return marker, nil
}

// DeleteCashEntry is the administrative override on the append-only log.
func (s *Service) DeleteCashEntry(ctx context.Context, id string) (domain.CashEntry, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.CashEntry{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CashEntry{}, fmt.Errorf("%w: cash entry id is required", ErrInvalidInput)
	}
	removed, err := s.repo.DeleteCashEntry(ctx, id)
	if err != nil {
		return domain.CashEntry{}, err
	}
	s.logAudit(ctx, "cash_entry_delete", "cash_entry", removed.ID, fmt.Sprintf("type=%s,amount=%s,added_by=%s", removed.Type, removed.Amount.StringFixed(2), removed.AddedBy))
	return *removed, nil
}

// LedgerView summarizes a business day; an empty key means today.
func (s *Service) LedgerView(ctx context.Context, dayKey string) (ledger.View, error) {
	day := s.ledger.Today()
	if strings.TrimSpace(dayKey) != "" {
		parsed, err := s.ledger.Calendar().Day(dayKey)
		if err != nil {
			return ledger.View{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		day = parsed
	}
	return s.ledger.Query(ctx, day)
}

type RollupReport struct {
	Granularity rollup.Granularity `json:"granularity"`
	Key         string             `json:"key"`
	AverageRate decimal.Decimal    `json:"average_rate"`
	Bucket      rollup.Bucket      `json:"bucket"`
}

// Rollup recomputes every bucket from the full history and selects one. An
// empty key selects the bucket containing now.
func (s *Service) Rollup(ctx context.Context, granularity rollup.Granularity, key string) (RollupReport, error) {
	res, err := s.rollup(ctx)
	if err != nil {
		return RollupReport{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = rollup.CurrentKey(granularity, s.now(), s.loc)
	}
	bucket := res.Bucket(granularity, key)
	return RollupReport{
		Granularity: granularity,
		Key:         bucket.Key,
		AverageRate: res.AverageRate,
		Bucket:      bucket,
	}, nil
}

// RollupBuckets lists every bucket of a granularity in key order.
func (s *Service) RollupBuckets(ctx context.Context, granularity rollup.Granularity) ([]rollup.Bucket, error) {
	res, err := s.rollup(ctx)
	if err != nil {
		return nil, err
	}
	return res.Buckets(granularity), nil
}

func (s *Service) rollup(ctx context.Context) (rollup.Result, error) {
	invoices, err := s.repo.ListInvoices(ctx, time.Time{}, time.Time{})
	if err != nil {
		return rollup.Result{}, err
	}
	entries, err := s.repo.ListCashEntries(ctx, time.Time{}, time.Time{})
	if err != nil {
		return rollup.Result{}, err
	}
	snapshot, err := s.CurrentRates(ctx)
	if err != nil {
		return rollup.Result{}, err
	}
	return rollup.Rollup(invoices, entries, snapshot.Rates, rollup.Options{
		DeductionPerGram: s.valuator.DeductionPerGram(),
		FallbackRate:     s.valuator.FallbackRate(),
		Location:         s.loc,
	}), nil
}

// ListAuditLogs covers one business day, or the last 24 hours when dayKey is
// empty.
func (s *Service) ListAuditLogs(ctx context.Context, dayKey string, limit int) ([]domain.AuditLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	from := s.now().UTC().Add(-24 * time.Hour)
	var to time.Time
	if strings.TrimSpace(dayKey) != "" {
		day, err := s.ledger.Calendar().Day(dayKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		from, to = day.Start, day.End
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

func lineItems(inputs []domain.ItemInput) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(inputs))
	for _, in := range inputs {
		item := in.LineItem()
		item.OrnamentType = strings.TrimSpace(item.OrnamentType)
		items = append(items, item)
	}
	return items
}

func goldDetail(in domain.ItemInput) domain.GoldDetail {
	return domain.GoldDetail{
		OrnamentType: strings.TrimSpace(in.OrnamentType),
		KDMType:      in.KDMType,
		GrossWeight:  in.GrossWeight,
		StoneWeight:  in.StoneWeight,
		Purity:       in.Purity,
	}
}

func trimBank(b domain.BankDetail) domain.BankDetail {
	return domain.BankDetail{
		BankName:      strings.TrimSpace(b.BankName),
		Branch:        strings.TrimSpace(b.Branch),
		LoanAccountNo: strings.TrimSpace(b.LoanAccountNo),
	}
}

func warnings(w *valuation.Warning) []valuation.Warning {
	if w == nil {
		return nil
	}
	return []valuation.Warning{*w}
}

func filterKind(invoices []domain.Invoice, kind domain.InvoiceKind) []domain.Invoice {
	out := make([]domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if kind != "" && inv.Kind != kind {
			continue
		}
		out = append(out, inv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
