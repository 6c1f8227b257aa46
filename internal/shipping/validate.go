package shipping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/address"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func validateRequest(items []Item, addr address.Address, opts Options) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Message: "at least one item is required"}
	}
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return fieldError(fmt.Sprintf("items[%d]", i), err)
		}
	}
	if err := ValidateShippingAddress(addr); err != nil {
		return err
	}
	if err := validate.Struct(opts); err != nil {
		return fieldError("options", err)
	}
	return nil
}

func fieldError(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		// StructNamespace starts with the root type name, e.g. Item.Dimensions.Length.
		_, path, _ := strings.Cut(fe.StructNamespace(), ".")
		return &ValidationError{
			Field:   prefix + "." + path,
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			Err:     err,
		}
	}
	return &ValidationError{Field: prefix, Message: "is invalid", Err: err}
}

// ValidateShippingAddress checks the country code and the US postal code rule.
func ValidateShippingAddress(addr address.Address) error {
	if err := address.Validate(addr); err != nil {
		var fe *address.FieldError
		if errors.As(err, &fe) {
			return &ValidationError{Field: "address." + fe.Field, Message: fe.Reason, Err: err}
		}
		return &ValidationError{Field: "address", Message: "is invalid", Err: err}
	}
	return nil
}
