package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purity is the fineness grade of a gold item.
type Purity string

const (
	Purity24K Purity = "24K"
	Purity22K Purity = "22K"
	Purity20K Purity = "20K"
	Purity18K Purity = "18K"
)

// StandardPurities lists the grades every rate table is expected to price.
var StandardPurities = []Purity{Purity24K, Purity22K, Purity20K, Purity18K}

func (p Purity) Valid() bool {
	switch p {
	case Purity24K, Purity22K, Purity20K, Purity18K:
		return true
	default:
		return false
	}
}

type KDMType string

const (
	KDMTypeKDM    KDMType = "KDM"
	KDMTypeNonKDM KDMType = "NonKDM"
)

func (k KDMType) Valid() bool {
	return k == KDMTypeKDM || k == KDMTypeNonKDM
}

// RateTable maps a purity grade to its rate per gram.
type RateTable map[Purity]decimal.Decimal

// Clone returns an independent copy of the table.
func (r RateTable) Clone() RateTable {
	out := make(RateTable, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type RateSnapshot struct {
	Version   int64     `json:"version"`
	Rates     RateTable `json:"rates"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
}

type RateUpdateRequest struct {
	Rates RateTable `json:"rates"`
}

// LineItem is a weighed gold item on a physical purchase invoice. The
// computed fields are filled by the valuator; OverrideAmount is set only
// when staff replace the computed payout, and never overwrites it.
type LineItem struct {
	OrnamentType      string           `json:"ornament_type"`
	KDMType           KDMType          `json:"kdm_type"`
	GrossWeight       decimal.Decimal  `json:"gross_weight"`
	StoneWeight       decimal.Decimal  `json:"stone_weight"`
	Purity            Purity           `json:"purity"`
	RateAtCalculation decimal.Decimal  `json:"rate_at_calculation"`
	NetWeight         decimal.Decimal  `json:"net_weight"`
	GrossAmount       decimal.Decimal  `json:"gross_amount"`
	DeductionAmount   decimal.Decimal  `json:"deduction_amount"`
	ComputedAmount    decimal.Decimal  `json:"computed_amount"`
	OverrideAmount    *decimal.Decimal `json:"override_amount,omitempty"`
}

// EffectiveAmount is the amount used for totals and reporting.
func (li LineItem) EffectiveAmount() decimal.Decimal {
	if li.OverrideAmount != nil {
		return *li.OverrideAmount
	}
	return li.ComputedAmount
}

type InvoiceKind string

const (
	InvoiceKindPhysical InvoiceKind = "physical"
	InvoiceKindRelease  InvoiceKind = "release"
	InvoiceKindTakeOver InvoiceKind = "takeover"
)

// GoldDetail describes the single pledged item on a release or takeover.
type GoldDetail struct {
	OrnamentType string          `json:"ornament_type"`
	KDMType      KDMType         `json:"kdm_type"`
	GrossWeight  decimal.Decimal `json:"gross_weight"`
	StoneWeight  decimal.Decimal `json:"stone_weight"`
	Purity       Purity          `json:"purity"`
	Rate         decimal.Decimal `json:"rate"`
	NetWeight    decimal.Decimal `json:"net_weight"`
}

type BankDetail struct {
	BankName      string `json:"bank_name"`
	Branch        string `json:"branch,omitempty"`
	LoanAccountNo string `json:"loan_account_no,omitempty"`
}

type PhysicalPayload struct {
	Items            []LineItem      `json:"items"`
	DeductionPerGram decimal.Decimal `json:"deduction_per_gram"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

type ReleasePayload struct {
	Gold              GoldDetail      `json:"gold"`
	Bank              BankDetail      `json:"bank"`
	RenewalAmount     decimal.Decimal `json:"renewal_amount"`
	CommissionPercent int             `json:"commission_percent"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
}

type TakeOverPayload struct {
	Gold           GoldDetail      `json:"gold"`
	Bank           BankDetail      `json:"bank"`
	TakeoverAmount decimal.Decimal `json:"takeover_amount"`
	MarketValue    decimal.Decimal `json:"market_value"`
	ProfitLoss     decimal.Decimal `json:"profit_loss"`
}

// Invoice is the shared envelope of the three transaction kinds. Exactly one
// payload matching Kind is set.
type Invoice struct {
	InvoiceNo    string           `json:"invoice_no"`
	Kind         InvoiceKind      `json:"kind"`
	CustomerRef  string           `json:"customer_ref"`
	CustomerName string           `json:"customer_name,omitempty"`
	CreatedBy    string           `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	Physical     *PhysicalPayload `json:"physical,omitempty"`
	Release      *ReleasePayload  `json:"release,omitempty"`
	TakeOver     *TakeOverPayload `json:"takeover,omitempty"`
}

// PaidAmount is the cash that left the shop for this invoice.
func (inv Invoice) PaidAmount() decimal.Decimal {
	switch inv.Kind {
	case InvoiceKindPhysical:
		if inv.Physical != nil {
			return inv.Physical.TotalAmount
		}
	case InvoiceKindRelease:
		if inv.Release != nil {
			return inv.Release.RenewalAmount
		}
	case InvoiceKindTakeOver:
		if inv.TakeOver != nil {
			return inv.TakeOver.TakeoverAmount
		}
	}
	return decimal.Zero
}

type ItemInput struct {
	OrnamentType   string           `json:"ornament_type"`
	KDMType        KDMType          `json:"kdm_type"`
	GrossWeight    decimal.Decimal  `json:"gross_weight"`
	StoneWeight    decimal.Decimal  `json:"stone_weight"`
	Purity         Purity           `json:"purity"`
	OverrideAmount *decimal.Decimal `json:"override_amount,omitempty"`
}

func (in ItemInput) LineItem() LineItem {
	return LineItem{
		OrnamentType:   in.OrnamentType,
		KDMType:        in.KDMType,
		GrossWeight:    in.GrossWeight,
		StoneWeight:    in.StoneWeight,
		Purity:         in.Purity,
		OverrideAmount: in.OverrideAmount,
	}
}

type ValuationRequest struct {
	Items []ItemInput `json:"items"`
}

type BillingRequest struct {
	CustomerRef  string      `json:"customer_ref"`
	CustomerName string      `json:"customer_name"`
	Items        []ItemInput `json:"items"`
}

type RenewalRequest struct {
	CustomerRef       string          `json:"customer_ref"`
	CustomerName      string          `json:"customer_name"`
	Gold              ItemInput       `json:"gold"`
	Bank              BankDetail      `json:"bank"`
	RenewalAmount     decimal.Decimal `json:"renewal_amount"`
	CommissionPercent int             `json:"commission_percent"`
}

type TakeOverRequest struct {
	CustomerRef    string          `json:"customer_ref"`
	CustomerName   string          `json:"customer_name"`
	Gold           ItemInput       `json:"gold"`
	Bank           BankDetail      `json:"bank"`
	TakeoverAmount decimal.Decimal `json:"takeover_amount"`
}

type CashEntryType string

const (
	CashEntryInitial   CashEntryType = "initial"
	CashEntryBilling   CashEntryType = "billing"
	CashEntryRemaining CashEntryType = "remaining"
	CashEntryExpense   CashEntryType = "expense"
)

func (t CashEntryType) Valid() bool {
	switch t {
	case CashEntryInitial, CashEntryBilling, CashEntryRemaining, CashEntryExpense:
		return true
	default:
		return false
	}
}

// IsDeduction reports whether the entry reduces the drawer balance.
func (t CashEntryType) IsDeduction() bool {
	return t == CashEntryBilling || t == CashEntryExpense
}

// CashEntry is an append-only drawer movement.
type CashEntry struct {
	ID             string          `json:"id"`
	Type           CashEntryType   `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	AddedBy        string          `json:"added_by"`
	AddedByRole    string          `json:"added_by_role"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CashAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type DayMarkerKind string

const (
	// DayMarkerInitialReset allows a new initial cash entry for the day.
	DayMarkerInitialReset DayMarkerKind = "initial_reset"
	// DayMarkerDayEnd resets initial cash and restarts the day's views.
	DayMarkerDayEnd DayMarkerKind = "day_end"
)

type DayMarker struct {
	ID          string        `json:"id"`
	Kind        DayMarkerKind `json:"kind"`
	BusinessDay string        `json:"business_day"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
}

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type Actor struct {
	Username string
	Role     string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type EmployeeCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type EmployeeUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
