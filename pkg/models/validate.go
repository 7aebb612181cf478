package models

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the json field names and the
// custom "finite" and "industry" rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			switch fl.Field().Kind() {
			case reflect.Float32, reflect.Float64:
				f := fl.Field().Float()
				return !math.IsNaN(f) && !math.IsInf(f, 0)
			}
			return true
		})
		_ = v.RegisterValidation("industry", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			for _, ind := range Industries {
				if string(ind) == s {
					return true
				}
			}
			return false
		})
		validate = v
	})
	return validate
}

type FieldError struct {
	Field string      `json:"field"`
	Rule  string      `json:"rule"`
	Value interface{} `json:"value,omitempty"`
}

// ValidationError rejects a FinancialData before any remote call is made.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Field, f.Rule))
	}
	return "invalid financial data: " + strings.Join(parts, ", ")
}

// Permanent marks validation failures as never retryable.
func (e *ValidationError) Permanent() bool { return true }

// FieldNames lists the offending fields in the order they were reported.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// ValidateFinancialData checks that every monetary field is a finite,
// non-negative number and that the enumerations hold known values.
func ValidateFinancialData(d FinancialData) error {
	err := Validator().Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate financial data: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: trimNamespace(fe.Namespace()),
			Rule:  fe.Tag(),
			Value: safeValue(fe.Value()),
		})
	}
	return out
}

// trimNamespace drops the leading struct name: "FinancialData.revenue" -> "revenue".
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// NaN and Inf cannot be encoded as JSON, so they are reported as text.
func safeValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return fmt.Sprint(f)
	}
	return v
}
