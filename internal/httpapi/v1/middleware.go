package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

type ctxKey string

const ctxKeyDeposit ctxKey = "validatedDeposit"
const ctxKeyReceipt ctxKey = "validatedReceipt"
const ctxKeyWithdrawal ctxKey = "validatedWithdrawal"

// validateDeposit parses and validates POST /deposits and stores the
// validated operation in the request context for the handler to use.
func (s *Server) validateDeposit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			body, ok := readBody(w, r)
			if !ok {
				return
			}
			var req depositRequest
			if !decodeStrict(w, body, &req) {
				return
			}
			op, ok := s.toOp(w, r, body, req.AccountID, req.AmountMinor, "")
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyDeposit, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateReceipt parses and validates POST /receipts.
func (s *Server) validateReceipt() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			body, ok := readBody(w, r)
			if !ok {
				return
			}
			var req receiptRequest
			if !decodeStrict(w, body, &req) {
				return
			}
			op, ok := s.toOp(w, r, body, req.AccountID, req.AmountMinor, req.Instruction)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyReceipt, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateWithdrawal parses and validates POST /withdrawals.
func (s *Server) validateWithdrawal() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			body, ok := readBody(w, r)
			if !ok {
				return
			}
			var req withdrawalRequest
			if !decodeStrict(w, body, &req) {
				return
			}
			op, ok := s.toOp(w, r, body, req.AccountID, req.AmountMinor, "")
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyWithdrawal, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// readBody reads the full request body so it can be both decoded and hashed
// for idempotency comparison.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read body")
		return nil, false
	}
	return body, true
}

func decodeStrict(w http.ResponseWriter, body []byte, v any) bool {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// toOp builds the validated operation. A zero amount passes through so the
// service can apply its own admission order; negative amounts are rejected
// here since they cannot represent attached value.
func (s *Server) toOp(w http.ResponseWriter, r *http.Request, body []byte, account uuid.UUID, amountMinor int64, instruction string) (opRequest, bool) {
	if account == uuid.Nil {
		badRequest(w, "account_id is required")
		return opRequest{}, false
	}
	if amountMinor < 0 {
		writeErr(w, http.StatusBadRequest, "amount_minor must not be negative", "invalid_amount")
		return opRequest{}, false
	}
	amount, err := money.NewAmountFromMinorUnits(s.svc.Params().Currency, amountMinor)
	if err != nil {
		badRequest(w, "invalid amount")
		return opRequest{}, false
	}
	return opRequest{
		account:     account,
		amount:      amount,
		instruction: instruction,
		bodyHash:    hashBytes(body),
		idemKey:     r.Header.Get("Idempotency-Key"),
	}, true
}
