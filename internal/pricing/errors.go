package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/common"
)

const (
	kindValidation  = common.KindValidation
	kindConsistency = common.KindConsistency
)

// Error reports invalid pricing input (validation) or a result that does not
// add up (consistency). Index is -1 when the error is not tied to an item.
type Error struct {
	Kind    common.Kind
	Index   int
	ItemID  string
	Field   string
	Message string
}

func itemError(i int, it Item, field, msg string) *Error {
	return &Error{Kind: kindValidation, Index: i, ItemID: it.ID, Field: field, Message: msg}
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("pricing: item %d (%s) %s %s", e.Index, e.ItemID, e.Field, e.Message)
	}
	return fmt.Sprintf("pricing: %s %s", e.Field, e.Message)
}

// ErrorKind implements common.Kinded.
func (e *Error) ErrorKind() common.Kind { return e.Kind }

// TaxError is returned when tax is requested for a negative amount.
type TaxError struct {
	Field  string
	Amount decimal.Decimal
}

func (e *TaxError) Error() string {
	return fmt.Sprintf("pricing: cannot compute tax, %s is negative (%s)", e.Field, e.Amount)
}

// ErrorKind implements common.Kinded.
func (e *TaxError) ErrorKind() common.Kind { return common.KindValidation }

// AddressError wraps an address validation failure.
type AddressError struct {
	Err error
}

func (e *AddressError) Error() string { return "pricing: " + e.Err.Error() }

func (e *AddressError) Unwrap() error { return e.Err }

// ErrorKind implements common.Kinded.
func (e *AddressError) ErrorKind() common.Kind { return common.KindValidation }
