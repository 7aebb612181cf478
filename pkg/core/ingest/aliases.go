package ingest

import "strings"

const (
	fieldRevenue     = "revenue"
	fieldExpenses    = "expenses"
	fieldReceivables = "accounts_receivable"
	fieldPayables    = "accounts_payable"
	fieldInventory   = "inventory"
	fieldLoans       = "loans"
	fieldCash        = "cash_in_hand"
	fieldBank        = "bank_balance"
	fieldIndustry    = "industry"
	fieldGST         = "gst_status"
)

var headerAliases = map[string]string{
	"revenue":             fieldRevenue,
	"sales":               fieldRevenue,
	"annual revenue":      fieldRevenue,
	"turnover":            fieldRevenue,
	"expenses":            fieldExpenses,
	"cost":                fieldExpenses,
	"costs":               fieldExpenses,
	"annual expenses":     fieldExpenses,
	"receivables":         fieldReceivables,
	"ar":                  fieldReceivables,
	"accounts receivable": fieldReceivables,
	"payables":            fieldPayables,
	"ap":                  fieldPayables,
	"accounts payable":    fieldPayables,
	"inventory":           fieldInventory,
	"stock":               fieldInventory,
	"loans":               fieldLoans,
	"debt":                fieldLoans,
	"cash":                fieldCash,
	"cash in hand":        fieldCash,
	"bank balance":        fieldBank,
	"balance":             fieldBank,
	"industry":            fieldIndustry,
	"sector":              fieldIndustry,
	"gst":                 fieldGST,
	"gst status":          fieldGST,
}

// normalizeHeader folds case, underscores and dashes so "Accounts_Receivable"
// and "accounts-receivable" hit the same alias.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ", ":", "", "(₹)", "", "(inr)", "").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

func fieldFor(header string) (string, bool) {
	f, ok := headerAliases[normalizeHeader(header)]
	return f, ok
}
