package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"goldpos/backend/internal/domain"
	"goldpos/backend/internal/store"
	"goldpos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	invoicesByNo     map[string]domain.Invoice
	invoiceOrder     []string
	invoiceSequences map[string]int64
	cashEntries      []domain.CashEntry
	dayMarkers       []domain.DayMarker
	rateSnapshots    []domain.RateSnapshot
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// DefaultRates seeds the rate table of a fresh development store.
func DefaultRates() domain.RateTable {
	return domain.RateTable{
		domain.Purity24K: decimal.NewFromInt(7250),
		domain.Purity22K: decimal.NewFromInt(6650),
		domain.Purity20K: decimal.NewFromInt(6050),
		domain.Purity18K: decimal.NewFromInt(5440),
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD; unset values fall back to
// hardcoded dev defaults with a warning. Production runs use PostgreSQL.
func seedUsers(log *zap.Logger) (map[string]domain.UserAccount, error) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "employee123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Warn("memory store using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"employee", employeePwd, domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with no users and no rates.
func New() *Store {
	return &Store{
		invoicesByNo:     make(map[string]domain.Invoice),
		invoiceSequences: make(map[string]int64),
		cashEntries:      make([]domain.CashEntry, 0, 128),
		dayMarkers:       make([]domain.DayMarker, 0, 16),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with demo users and an initial rate snapshot.
func NewSeeded(log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	users, err := seedUsers(log)
	if err != nil {
		return nil, err
	}
	s := New()
	s.usersByUsername = users
	s.rateSnapshots = append(s.rateSnapshots, domain.RateSnapshot{
		Version:   1,
		Rates:     DefaultRates(),
		UpdatedBy: "system",
		CreatedAt: time.Now().UTC(),
	})
	return s, nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if err := store.ValidateInvoice(invoice); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoicesByNo[invoice.InvoiceNo]; exists {
		return nil, store.ErrConflict
	}
	stored := cloneInvoice(invoice)
	s.invoicesByNo[invoice.InvoiceNo] = stored
	s.invoiceOrder = append(s.invoiceOrder, invoice.InvoiceNo)
	out := cloneInvoice(stored)
	return &out, nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceNo string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, exists := s.invoicesByNo[invoiceNo]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneInvoice(invoice)
	return &out, nil
}

func (s *Store) ListInvoices(_ context.Context, from time.Time, to time.Time) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Invoice, 0, len(s.invoiceOrder))
	for _, no := range s.invoiceOrder {
		invoice := s.invoicesByNo[no]
		if !store.InRange(invoice.CreatedAt, from, to) {
			continue
		}
		result = append(result, cloneInvoice(invoice))
	}
	slices.SortStableFunc(result, func(a, b domain.Invoice) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (s *Store) ListInvoiceNumbers(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	numbers := make([]string, 0, 16)
	for no := range s.invoicesByNo {
		if strings.HasPrefix(no, prefix) {
			numbers = append(numbers, no)
		}
	}
	slices.Sort(numbers)
	return numbers, nil
}

func (s *Store) DeleteInvoice(_ context.Context, invoiceNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoicesByNo[invoiceNo]; !exists {
		return store.ErrNotFound
	}
	delete(s.invoicesByNo, invoiceNo)
	s.invoiceOrder = slices.DeleteFunc(s.invoiceOrder, func(no string) bool { return no == invoiceNo })
	return nil
}

func (s *Store) NextInvoiceSequence(_ context.Context, dateKey string) (int64, error) {
	if strings.TrimSpace(dateKey) == "" {
		return 0, store.ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoiceSequences[dateKey]++
	return s.invoiceSequences[dateKey], nil
}

func (s *Store) AppendCashEntry(_ context.Context, entry domain.CashEntry) (*domain.CashEntry, error) {
	if !entry.Type.Valid() || !entry.Amount.IsPositive() || entry.AddedBy == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("cash")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.cashEntries = append(s.cashEntries, entry)
	return &entry, nil
}

func (s *Store) ListCashEntries(_ context.Context, from time.Time, to time.Time) ([]domain.CashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashEntry, 0, len(s.cashEntries))
	for _, entry := range s.cashEntries {
		if store.InRange(entry.CreatedAt, from, to) {
			result = append(result, entry)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.CashEntry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteCashEntry(_ context.Context, id string) (*domain.CashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.cashEntries, func(e domain.CashEntry) bool { return e.ID == id })
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	removed := s.cashEntries[idx]
	s.cashEntries = slices.Delete(s.cashEntries, idx, idx+1)
	return &removed, nil
}

func (s *Store) AppendDayMarker(_ context.Context, marker domain.DayMarker) (*domain.DayMarker, error) {
	if marker.Kind != domain.DayMarkerDayEnd && marker.Kind != domain.DayMarkerInitialReset {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if marker.ID == "" {
		marker.ID = xid.New("mark")
	}
	if marker.CreatedAt.IsZero() {
		marker.CreatedAt = time.Now().UTC()
	}
	s.dayMarkers = append(s.dayMarkers, marker)
	return &marker, nil
}

func (s *Store) ListDayMarkers(_ context.Context, from time.Time, to time.Time) ([]domain.DayMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DayMarker, 0, len(s.dayMarkers))
	for _, marker := range s.dayMarkers {
		if store.InRange(marker.CreatedAt, from, to) {
			result = append(result, marker)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.DayMarker) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (s *Store) SaveRateSnapshot(_ context.Context, snapshot domain.RateSnapshot) (*domain.RateSnapshot, error) {
	if len(snapshot.Rates) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot.Version = int64(len(s.rateSnapshots)) + 1
	snapshot.Rates = snapshot.Rates.Clone()
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	s.rateSnapshots = append(s.rateSnapshots, snapshot)
	out := snapshot
	out.Rates = snapshot.Rates.Clone()
	return &out, nil
}

func (s *Store) LatestRateSnapshot(_ context.Context) (*domain.RateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rateSnapshots) == 0 {
		return nil, store.ErrNotFound
	}
	out := s.rateSnapshots[len(s.rateSnapshots)-1]
	out.Rates = out.Rates.Clone()
	return &out, nil
}

func (s *Store) ListRateSnapshots(_ context.Context, limit int) ([]domain.RateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.RateSnapshot, 0, len(s.rateSnapshots))
	for i := len(s.rateSnapshots) - 1; i >= 0; i-- {
		snapshot := s.rateSnapshots[i]
		snapshot.Rates = snapshot.Rates.Clone()
		result = append(result, snapshot)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if store.InRange(entry.CreatedAt, from, to) {
			result = append(result, entry)
		}
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneInvoice(src domain.Invoice) domain.Invoice {
	dst := src
	if src.Physical != nil {
		physical := *src.Physical
		physical.Items = append([]domain.LineItem(nil), src.Physical.Items...)
		dst.Physical = &physical
	}
	if src.Release != nil {
		release := *src.Release
		dst.Release = &release
	}
	if src.TakeOver != nil {
		takeover := *src.TakeOver
		dst.TakeOver = &takeover
	}
	return dst
}

var _ store.Repository = (*Store)(nil)
