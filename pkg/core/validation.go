package core

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// notblank rejects empty and whitespace-only strings.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateStruct reports the first failing field as a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		field := strings.ToLower(fieldErrs[0].Field())
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
		}
	}
	return err
}

// ValidateTipAmount checks that a tip carries a strictly positive payment.
func ValidateTipAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return &ValidationError{
			Field:   "amount",
			Message: "tip amount must be greater than 0",
		}
	}
	return nil
}

// ValidateNoteRef checks that a mutation names a note. Ledger ids start at 1.
func ValidateNoteRef(ref NoteRef) error {
	if ref.ID == 0 {
		return &ValidationError{Field: "id", Message: "note id is required"}
	}
	return nil
}
