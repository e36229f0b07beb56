package v1

import (
	"errors"
	"net/http"

	"github.com/tinoosan/vault/internal/errs"
)

// errorResponse is the standard error payload for the API. Details carries
// the exact arithmetic of the rejected operation for admission failures.
type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func conflict(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusConflict, msg, "conflict")
}
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeOpError maps a vault operation failure onto an HTTP response,
// surfacing the admission arithmetic in the details payload.
func writeOpError(w http.ResponseWriter, err error) {
	var capErr *errs.CapacityExceededError
	var insErr *errs.InsufficientBalanceError
	var limErr *errs.WithdrawalLimitExceededError
	var trfErr *errs.TransferFailedError
	switch {
	case errors.Is(err, errs.ErrZeroAmount):
		unprocessable(w, "amount must be greater than zero", "zero_amount")
	case errors.As(err, &capErr):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: capErr.Error(),
			Code:  "capacity_exceeded",
			Details: map[string]any{
				"attempted_total_minor": capErr.AttemptedMinor,
				"capacity_minor":        capErr.CapacityMinor,
			},
		})
	case errors.As(err, &insErr):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: insErr.Error(),
			Code:  "insufficient_balance",
			Details: map[string]any{
				"available_minor": insErr.AvailableMinor,
				"requested_minor": insErr.RequestedMinor,
			},
		})
	case errors.As(err, &limErr):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: limErr.Error(),
			Code:  "withdrawal_limit_exceeded",
			Details: map[string]any{
				"requested_minor": limErr.RequestedMinor,
				"limit_minor":     limErr.LimitMinor,
			},
		})
	case errors.As(err, &trfErr):
		toJSON(w, http.StatusBadGateway, errorResponse{
			Error: trfErr.Error(),
			Code:  "transfer_failed",
			Details: map[string]any{
				"recipient":    trfErr.Recipient.String(),
				"amount_minor": trfErr.AmountMinor,
			},
		})
	case errors.Is(err, errs.ErrInvalid):
		badRequest(w, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal error", "")
	}
}
