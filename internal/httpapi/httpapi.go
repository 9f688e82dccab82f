package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"goldpos/backend/internal/calc"
	"goldpos/backend/internal/domain"
	"goldpos/backend/internal/invoiceno"
	"goldpos/backend/internal/ledger"
	"goldpos/backend/internal/logger"
	"goldpos/backend/internal/redisstore"
	"goldpos/backend/internal/rollup"
	"goldpos/backend/internal/service"
	"goldpos/backend/internal/store"
	"goldpos/backend/internal/valuation"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
	log           *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
		log:           log,
	}
}

// csrfTokenForHour is the hex HMAC-SHA256 of an hour bucket (Unix seconds
// truncated to the hour).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	staff := []string{domain.RoleEmployee, domain.RoleAdmin}

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/rates", a.requireAuth(a.handleRates, staff...))
	mux.HandleFunc("/api/v1/rates/history", a.requireAuth(a.handleRateHistory, staff...))
	mux.HandleFunc("/api/v1/valuations", a.requireAuth(a.handleValuation, staff...))

	mux.HandleFunc("/api/v1/invoices/next-number", a.requireAuth(a.handleNextInvoiceNumber, staff...))
	mux.HandleFunc("/api/v1/invoices/", a.requireAuth(a.handleInvoiceActions, staff...))
	mux.HandleFunc("/api/v1/billings", a.requireAuth(a.handleBillings, staff...))
	mux.HandleFunc("/api/v1/renewals", a.requireAuth(a.handleRenewals, staff...))
	mux.HandleFunc("/api/v1/takeovers", a.requireAuth(a.handleTakeOvers, staff...))
	mux.HandleFunc("/api/v1/transactions/today", a.requireAuth(a.handleTodayTransactions, staff...))

	mux.HandleFunc("/api/v1/cash/initial", a.requireAuth(a.handleCashAmount(a.service.AddInitial), staff...))
	mux.HandleFunc("/api/v1/cash/remaining", a.requireAuth(a.handleCashAmount(a.service.AddRemaining), staff...))
	mux.HandleFunc("/api/v1/cash/expense", a.requireAuth(a.handleCashAmount(a.service.AddExpense), staff...))
	mux.HandleFunc("/api/v1/cash/reset-initial", a.requireAuth(a.handleDayMarker(a.service.ResetInitial), domain.RoleAdmin))
	mux.HandleFunc("/api/v1/cash/end-day", a.requireAuth(a.handleDayMarker(a.service.EndDay), domain.RoleAdmin))
	mux.HandleFunc("/api/v1/cash/entries/", a.requireAuth(a.handleCashEntryActions, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/cash/ledger", a.requireAuth(a.handleLedger, staff...))

	mux.HandleFunc("/api/v1/reports/rollup", a.requireAuth(a.handleRollup, staff...))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/users/employees", a.requireAuth(a.handleEmployees, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("actor", actor.Username)))
		next(w, r.WithContext(ctx))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken issues a token for the X-CSRF-Token header of mutating
// requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snapshot, err := a.service.CurrentRates(r.Context())
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"rates":        snapshot,
			"average_rate": a.service.AverageRate(snapshot.Rates),
		})
	case http.MethodPut:
		var req domain.RateUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		snapshot, err := a.service.UpdateRates(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rates": snapshot})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRateHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 20, 200)
	history, err := a.service.ListRateHistory(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (a *API) handleValuation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.ValuationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.Valuate(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if result.Warnings == nil {
		result.Warnings = []valuation.Warning{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleNextInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	next, err := a.service.NextInvoiceNumber(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice_no": next})
}

func (a *API) handleInvoiceActions(w http.ResponseWriter, r *http.Request) {
	invoiceNo := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/invoices/"), "/")
	if invoiceNo == "" || strings.Contains(invoiceNo, "/") {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		invoice, err := a.service.GetInvoice(r.Context(), invoiceNo)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case http.MethodDelete:
		if err := a.service.DeleteInvoice(r.Context(), invoiceNo); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": invoiceNo})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBillings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		day := strings.TrimSpace(r.URL.Query().Get("day"))
		var (
			invoices []domain.Invoice
			err      error
		)
		if day == "" {
			invoices, err = a.service.TodayTransactions(r.Context(), domain.InvoiceKindPhysical)
		} else {
			invoices, err = a.service.ListInvoices(r.Context(), day, domain.InvoiceKindPhysical)
		}
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	case http.MethodPost:
		var req domain.BillingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.CreateBilling(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRenewals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.RenewalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.CreateRenewal(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleTakeOvers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.TakeOverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.CreateTakeOver(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleTodayTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	kind := domain.InvoiceKind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	switch kind {
	case "", domain.InvoiceKindPhysical, domain.InvoiceKindRelease, domain.InvoiceKindTakeOver:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown kind %q", kind))
		return
	}
	invoices, err := a.service.TodayTransactions(r.Context(), kind)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) handleCashAmount(add func(context.Context, domain.CashAmountRequest) (domain.CashEntry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.CashAmountRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := add(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
	}
}

func (a *API) handleDayMarker(mark func(context.Context) (domain.DayMarker, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		marker, err := mark(r.Context())
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"marker": marker})
	}
}

func (a *API) handleCashEntryActions(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/cash/entries/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	removed, err := a.service.DeleteCashEntry(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
}

func (a *API) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	view, err := a.service.LedgerView(r.Context(), r.URL.Query().Get("day"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRollup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	granularity, err := rollup.ParseGranularity(query.Get("granularity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(query.Get("format")))

	switch format {
	case "", "json":
		report, err := a.service.Rollup(r.Context(), granularity, query.Get("key"))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case "csv", "xlsx":
		buckets, err := a.service.RollupBuckets(r.Context(), granularity)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		a.writeRollupExport(w, r, format, granularity, buckets)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
	}
}

func (a *API) writeRollupExport(w http.ResponseWriter, r *http.Request, format string, granularity rollup.Granularity, buckets []rollup.Bucket) {
	var (
		body        []byte
		err         error
		contentType string
	)
	if format == "csv" {
		body, err = rollupToCSV(buckets)
		contentType = "text/csv; charset=utf-8"
	} else {
		body, err = rollupToXLSX(buckets)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"rollup-%s.%s\"", granularity, format))
	_, _ = w.Write(body)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	day := r.URL.Query().Get("day")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), day, limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"employees": a.auth.ListEmployees(r.Context())})
	case http.MethodPost:
		var req domain.EmployeeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		employee, err := a.auth.CreateEmployee(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"employee": employee})
	default:
		writeMethodNotAllowed(w)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		reqLog := a.log.With(zap.String("method", r.Method), zap.String("path", r.URL.Path))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), reqLog)))
		reqLog.Info("request",
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

// statusFor maps domain and store errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingActor), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, ErrUserExists),
		errors.Is(err, ledger.ErrInitialAlreadySet),
		errors.Is(err, invoiceno.ErrSequenceExhausted):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, ErrInvalidEmployee):
		return http.StatusBadRequest
	case errors.Is(err, valuation.ErrInvalidWeight),
		errors.Is(err, valuation.ErrInvalidPurity),
		errors.Is(err, valuation.ErrInvalidKDMType),
		errors.Is(err, valuation.ErrInvalidOverride),
		errors.Is(err, calc.ErrInvalidPercentage),
		errors.Is(err, calc.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, redisstore.ErrLockNotObtained):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.FromContext(r.Context()).Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the detail of 5xx errors; callers log them.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
