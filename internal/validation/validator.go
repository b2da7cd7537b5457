package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

// New returns a validator that reports json field names and compares
// money amounts numerically, so tags like gt=0 work on money.Money fields.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(moneyValue, money.Money{})
	v.RegisterStructValidation(changeStatusStructValidation, ChangeStatusRequest{})

	return v
}

// moneyValue exposes the amount as a float for comparison tags only; the
// decimal itself is what gets persisted.
func moneyValue(field reflect.Value) interface{} {
	if m, ok := field.Interface().(money.Money); ok {
		return m.InexactFloat64()
	}
	return nil
}

// changeStatusStructValidation rejects payment info on a request that moves
// payment status to something other than paid.
func changeStatusStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ChangeStatusRequest)
	if req.PaymentInfo != nil && req.PaymentStatus != nil && *req.PaymentStatus != "paid" {
		sl.ReportError(req.PaymentInfo, "payment_info", "PaymentInfo", "requires_paid", "")
	}
}
