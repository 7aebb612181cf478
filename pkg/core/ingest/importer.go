package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"finpulse/pkg/models"

	"github.com/shopspring/decimal"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

var ErrUnsupportedFormat = errors.New("unsupported import format")

// Result holds the outcome of mapping an uploaded statement onto the assessment form.
type Result struct {
	FileName     string                    `json:"file_name"`
	Format       Format                    `json:"format"`
	Patch        models.FinancialDataPatch `json:"patch"`
	MappedFields int                       `json:"mapped_fields"`
	Unmapped     []string                  `json:"unmapped,omitempty"` // headers with no matching field
}

// FormatOf picks the parser from the file extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// Import reads a CSV, XLSX or HTML statement and maps the recognised columns
// onto a FinancialDataPatch. The patch is not validated.
func Import(name string, r io.Reader) (Result, error) {
	format, err := FormatOf(name)
	if err != nil {
		return Result{}, err
	}

	var pairs []pair
	switch format {
	case FormatCSV:
		pairs, err = readCSV(r)
	case FormatXLSX:
		pairs, err = readXLSX(r)
	case FormatHTML:
		pairs, err = readHTML(r)
	}
	if err != nil {
		return Result{}, fmt.Errorf("import %s: %w", name, err)
	}

	res := Result{FileName: name, Format: format}
	if err := res.apply(pairs); err != nil {
		return Result{}, fmt.Errorf("import %s: %w", name, err)
	}
	return res, nil
}

// pair is one header/value cell of the source table.
type pair struct {
	Key   string
	Value string
}

// fromRows turns a table into pairs. A table whose first row names known
// fields is read as header + first data row; otherwise every row with at
// least two cells is read as key/value.
func fromRows(rows [][]string) ([]pair, error) {
	rows = dropBlank(rows)
	if len(rows) == 0 {
		return nil, errors.New("no rows found")
	}

	header := rows[0]
	if len(rows) > 1 && knownHeaders(header) > 1 {
		data := rows[1]
		out := make([]pair, 0, len(header))
		for i, key := range header {
			val := ""
			if i < len(data) {
				val = data[i]
			}
			out = append(out, pair{Key: key, Value: val})
		}
		return out, nil
	}

	out := make([]pair, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, pair{Key: row[0], Value: row[1]})
	}
	if len(out) == 0 {
		return nil, errors.New("no key/value rows found")
	}
	return out, nil
}

func dropBlank(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func knownHeaders(row []string) int {
	n := 0
	for _, cell := range row {
		if _, ok := fieldFor(cell); ok {
			n++
		}
	}
	return n
}

func (res *Result) apply(pairs []pair) error {
	seen := map[string]bool{}
	for _, p := range pairs {
		f, ok := fieldFor(p.Key)
		if !ok {
			if k := strings.TrimSpace(p.Key); k != "" {
				res.Unmapped = append(res.Unmapped, k)
			}
			continue
		}
		if seen[f] || strings.TrimSpace(p.Value) == "" {
			continue
		}
		if err := assign(&res.Patch, f, p.Value); err != nil {
			return fmt.Errorf("column %q: %w", p.Key, err)
		}
		seen[f] = true
		res.MappedFields++
	}
	sort.Strings(res.Unmapped)
	return nil
}

func assign(p *models.FinancialDataPatch, field, raw string) error {
	switch field {
	case fieldIndustry:
		ind, ok := matchIndustry(raw)
		if !ok {
			return fmt.Errorf("unknown industry %q", raw)
		}
		p.Industry = &ind
		return nil
	case fieldGST:
		st, ok := matchGST(raw)
		if !ok {
			return fmt.Errorf("unknown GST status %q", raw)
		}
		p.GSTStatus = &st
		return nil
	}

	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	switch field {
	case fieldRevenue:
		p.Revenue = &v
	case fieldExpenses:
		p.Expenses = &v
	case fieldReceivables:
		p.AccountsReceivable = &v
	case fieldPayables:
		p.AccountsPayable = &v
	case fieldInventory:
		p.Inventory = &v
	case fieldLoans:
		p.Loans = &v
	case fieldCash:
		p.CashInHand = &v
	case fieldBank:
		p.BankBalance = &v
	}
	return nil
}

var amountReplacer = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "", "INR", "", " ", "", "\u00a0", "")

// ParseAmount reads a currency cell such as "₹ 1,20,000.50" or "(5,000)".
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(amountReplacer.Replace(raw))
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if neg {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

func matchIndustry(raw string) (models.Industry, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, ind := range models.Industries {
		if strings.ToLower(string(ind)) == s {
			return ind, true
		}
	}
	if s == "ecommerce" {
		return models.IndustryECommerce, true
	}
	return "", false
}

func matchGST(raw string) (models.GSTStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "filed":
		return models.GSTFiled, true
	case "pending":
		return models.GSTPending, true
	case "overdue":
		return models.GSTOverdue, true
	}
	return "", false
}
