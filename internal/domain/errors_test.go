package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockErrorMessageAndUnwrap(t *testing.T) {
	err := fmt.Errorf("record sale: %w", &InsufficientStockError{ItemID: "item-1", ItemName: "Teh Celup", Available: 2, Requested: 5})

	assert.True(t, errors.Is(err, ErrInsufficientStock))

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "insufficient stock for Teh Celup. Available: 2, Requested: 5", stockErr.Error())
}

func TestInsufficientStockErrorFallsBackToID(t *testing.T) {
	err := &InsufficientStockError{ItemID: "item-9", Available: 0, Requested: 1}
	assert.Contains(t, err.Error(), "item-9")
}

func TestValidatorCollectsAllFields(t *testing.T) {
	var v Validator
	v.Check(true, "name", "is required")
	v.Check(false, "quantity", "must be positive")
	v.Check(false, "payment_method", "is not supported")

	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
	assert.Equal(t, "validation: quantity must be positive; payment_method is not supported", verr.Error())
}

func TestValidatorNoErrors(t *testing.T) {
	var v Validator
	v.Check(true, "name", "is required")
	assert.NoError(t, v.Err())
}

func TestParsePaymentMethod(t *testing.T) {
	cases := map[string]PaymentMethod{
		"":        PaymentCash,
		"cash":    PaymentCash,
		"Card":    PaymentCard,
		" ONLINE": PaymentOnline,
	}
	for raw, want := range cases {
		got, ok := ParsePaymentMethod(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParsePaymentMethod("crypto")
	assert.False(t, ok)
}

func TestItemIsLowStockIsStrict(t *testing.T) {
	assert.True(t, Item{Quantity: 4, LowStockThreshold: 5}.IsLowStock())
	assert.False(t, Item{Quantity: 5, LowStockThreshold: 5}.IsLowStock())
	assert.False(t, Item{Quantity: 6, LowStockThreshold: 5}.IsLowStock())
}
