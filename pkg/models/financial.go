package models

type Industry string

const (
	IndustryManufacturing Industry = "Manufacturing"
	IndustryRetail        Industry = "Retail"
	IndustryAgriculture   Industry = "Agriculture"
	IndustryServices      Industry = "Services"
	IndustryLogistics     Industry = "Logistics"
	IndustryECommerce     Industry = "E-commerce"
)

// Industries lists the supported sectors in display order.
var Industries = []Industry{
	IndustryManufacturing,
	IndustryRetail,
	IndustryAgriculture,
	IndustryServices,
	IndustryLogistics,
	IndustryECommerce,
}

type GSTStatus string

const (
	GSTFiled   GSTStatus = "Filed"
	GSTPending GSTStatus = "Pending"
	GSTOverdue GSTStatus = "Overdue"
)

// FinancialData is the owner-submitted snapshot. Revenue and expenses are annual figures.
type FinancialData struct {
	Revenue            float64   `json:"revenue" validate:"finite,gte=0"`
	Expenses           float64   `json:"expenses" validate:"finite,gte=0"`
	AccountsReceivable float64   `json:"accounts_receivable" validate:"finite,gte=0"`
	AccountsPayable    float64   `json:"accounts_payable" validate:"finite,gte=0"`
	Inventory          float64   `json:"inventory" validate:"finite,gte=0"`
	Loans              float64   `json:"loans" validate:"finite,gte=0"`
	CashInHand         float64   `json:"cash_in_hand" validate:"finite,gte=0"`
	ExistingEMIs       []float64 `json:"existing_emis,omitempty" validate:"omitempty,dive,finite,gte=0"`
	Industry           Industry  `json:"industry" validate:"required,industry"`
	GSTStatus          GSTStatus `json:"gst_status,omitempty" validate:"omitempty,oneof=Filed Pending Overdue"`
	BankBalance        float64   `json:"bank_balance,omitempty" validate:"finite,gte=0"`
}

// MonthlyRevenue spreads the annual revenue evenly across twelve months.
func (d FinancialData) MonthlyRevenue() float64 {
	return d.Revenue / 12
}

// Clone returns a copy that shares no slices with d.
func (d FinancialData) Clone() FinancialData {
	out := d
	if d.ExistingEMIs != nil {
		out.ExistingEMIs = append([]float64(nil), d.ExistingEMIs...)
	}
	return out
}

// FinancialDataPatch is a partially known FinancialData, as produced by a file import.
// Nil fields are left untouched by Apply.
type FinancialDataPatch struct {
	Revenue            *float64   `json:"revenue,omitempty"`
	Expenses           *float64   `json:"expenses,omitempty"`
	AccountsReceivable *float64   `json:"accounts_receivable,omitempty"`
	AccountsPayable    *float64   `json:"accounts_payable,omitempty"`
	Inventory          *float64   `json:"inventory,omitempty"`
	Loans              *float64   `json:"loans,omitempty"`
	CashInHand         *float64   `json:"cash_in_hand,omitempty"`
	Industry           *Industry  `json:"industry,omitempty"`
	GSTStatus          *GSTStatus `json:"gst_status,omitempty"`
	BankBalance        *float64   `json:"bank_balance,omitempty"`
}

// DefaultFinancialData is the empty form the import seed is applied over.
func DefaultFinancialData() FinancialData {
	return FinancialData{Industry: IndustryServices, GSTStatus: GSTFiled}
}

func (p FinancialDataPatch) Apply(base FinancialData) FinancialData {
	out := base.Clone()
	setFloat(&out.Revenue, p.Revenue)
	setFloat(&out.Expenses, p.Expenses)
	setFloat(&out.AccountsReceivable, p.AccountsReceivable)
	setFloat(&out.AccountsPayable, p.AccountsPayable)
	setFloat(&out.Inventory, p.Inventory)
	setFloat(&out.Loans, p.Loans)
	setFloat(&out.CashInHand, p.CashInHand)
	setFloat(&out.BankBalance, p.BankBalance)
	if p.Industry != nil {
		out.Industry = *p.Industry
	}
	if p.GSTStatus != nil {
		out.GSTStatus = *p.GSTStatus
	}
	return out
}

// Empty reports whether the patch carries no values at all.
func (p FinancialDataPatch) Empty() bool {
	return p.Revenue == nil && p.Expenses == nil && p.AccountsReceivable == nil &&
		p.AccountsPayable == nil && p.Inventory == nil && p.Loans == nil &&
		p.CashInHand == nil && p.Industry == nil && p.GSTStatus == nil && p.BankBalance == nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
