package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/logiport/logiport/internal/authorization"
	docgroupdomain "github.com/logiport/logiport/internal/docgroup/domain"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	transactiondomain "github.com/logiport/logiport/internal/transaction/domain"
	userdomain "github.com/logiport/logiport/internal/user/domain"
)

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{transactiondomain.ErrTransactionNotFound, http.StatusNotFound},
		{userdomain.ErrUserNotFound, http.StatusNotFound},
		{transactiondomain.ErrDuplicateNumber, http.StatusConflict},
		{userdomain.ErrUsernameTaken, http.StatusConflict},
		{docgroupdomain.ErrDuplicateSeq, http.StatusConflict},
		{numberingdomain.ErrSyncContention, http.StatusConflict},
		{transactiondomain.ErrTransitionNotAllowed, http.StatusUnprocessableEntity},
		{transactiondomain.ErrTransactionLocked, http.StatusUnprocessableEntity},
		{authorization.ErrForbidden, http.StatusForbidden},
		{userdomain.ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrUnauthorized, http.StatusUnauthorized},
		{transactiondomain.ErrInvalidStatus, http.StatusBadRequest},
		{docgroupdomain.ErrInvalidDocCode, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		status, _ := mapError(tc.err)
		if status != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, status)
		}
	}

	// Wrapped errors still map through errors.Is.
	status, _ := mapError(fmt.Errorf("change status: %w", transactiondomain.ErrTransitionNotAllowed))
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("wrapped sentinel lost its mapping, got %d", status)
	}
}

func TestValidationErrorsPayload(t *testing.T) {
	status, payload := mapError(newValidationError("status", "invalid_status", "invalid status"))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if len(payload.Errors) != 1 || payload.Errors[0].Field != "status" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
