package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/quorumhq/quorum/internal/authorization"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	recurringdomain "github.com/quorumhq/quorum/internal/recurring/domain"
	registrydomain "github.com/quorumhq/quorum/internal/registry/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantType   string
	}{
		{ledgerdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{ledgerdomain.ErrInvalidTarget, http.StatusBadRequest, "validation_error"},
		{recurringdomain.ErrInvalidFrequency, http.StatusBadRequest, "validation_error"},
		{registrydomain.ErrInvalidUnitNo, http.StatusBadRequest, "validation_error"},
		{ledgerdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{registrydomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{ledgerdomain.ErrDuplicateAllocation, http.StatusConflict, "duplicate_allocation"},
		{ledgerdomain.ErrConcurrencyConflict, http.StatusConflict, "concurrency_conflict"},
		{ledgerdomain.ErrCommunityMismatch, http.StatusConflict, "community_mismatch"},
		{ledgerdomain.ErrBalanceViolation, http.StatusUnprocessableEntity, "balance_violation"},
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("wrapped: %w", ledgerdomain.ErrBalanceViolation), http.StatusUnprocessableEntity, "balance_violation"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.wantType+"/"+tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantType, payload.Type)
		})
	}
}

func TestMapErrorValidationPayload(t *testing.T) {
	status, payload := mapError(newValidationError("amount", "invalid_amount", "invalid amount"))
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "amount", payload.Errors[0].Field)
	assert.Equal(t, "invalid_amount", payload.Errors[0].Code)
}
