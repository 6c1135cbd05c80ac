package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := ErrNotFound.Withf("crm_customers %d not found", 42)

	assert.Equal(t, "crm_customers 42 not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("load: %w", err), ErrNotFound)
	assert.False(t, errors.Is(err, ErrConcurrencyConflict))
	assert.False(t, errors.Is(err, errors.New("NOT_FOUND")))
	assert.Equal(t, "Record not found", ErrNotFound.Message, "sentinel is left untouched")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "INVALID_STATE", CodeOf(fmt.Errorf("close case: %w", ErrInvalidState)))
	assert.Equal(t, "INVALID_NAME", CodeOf(NewDomainError("INVALID_NAME", "Name cannot be empty")))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, CodeOf(nil))
}
