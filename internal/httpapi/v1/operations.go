package v1

import (
	"net/http"

	"github.com/tinoosan/vault/internal/vault"
)

// postDeposit handles POST /v1/deposits: the explicit deposit call. The
// amount_minor field is the value attached to the call.
func (s *Server) postDeposit(w http.ResponseWriter, r *http.Request) {
	op := r.Context().Value(ctxKeyDeposit).(opRequest)
	if s.replay(w, r, op) {
		return
	}
	rcpt, err := s.svc.Deposit(r.Context(), op.account, op.amount)
	if err != nil {
		writeOpError(w, err)
		return
	}
	s.finish(w, r, op, http.StatusCreated, toOperationResponse("deposit", rcpt))
}

// postReceipt handles POST /v1/receipts: value arriving outside the explicit
// deposit call. An empty instruction is the plain receive path; any
// unrecognized instruction routes to the fallback path, where a zero amount
// is accepted as a no-op.
func (s *Server) postReceipt(w http.ResponseWriter, r *http.Request) {
	op := r.Context().Value(ctxKeyReceipt).(opRequest)
	var (
		rcpt vault.Receipt
		err  error
	)
	if op.instruction == "" {
		rcpt, err = s.svc.Receive(r.Context(), op.account, op.amount)
	} else {
		rcpt, err = s.svc.ReceiveUnknown(r.Context(), op.account, op.instruction, op.amount)
	}
	if err != nil {
		writeOpError(w, err)
		return
	}
	status := http.StatusCreated
	if rcpt.NoOp {
		status = http.StatusOK
	}
	toJSON(w, status, toOperationResponse("receipt", rcpt))
}

// postWithdrawal handles POST /v1/withdrawals.
func (s *Server) postWithdrawal(w http.ResponseWriter, r *http.Request) {
	op := r.Context().Value(ctxKeyWithdrawal).(opRequest)
	if s.replay(w, r, op) {
		return
	}
	rcpt, err := s.svc.Withdraw(r.Context(), op.account, op.amount)
	if err != nil {
		writeOpError(w, err)
		return
	}
	s.finish(w, r, op, http.StatusCreated, toOperationResponse("withdrawal", rcpt))
}

func toOperationResponse(kind string, rcpt vault.Receipt) operationResponse {
	amountMinor, _ := rcpt.Amount.MinorUnits()
	balanceMinor, _ := rcpt.NewBalance.MinorUnits()
	return operationResponse{
		Kind:            kind,
		AccountID:       rcpt.Account,
		Currency:        rcpt.NewBalance.Curr().Code(),
		AmountMinor:     amountMinor,
		Amount:          rcpt.Amount.String(),
		NewBalanceMinor: balanceMinor,
		NewBalance:      rcpt.NewBalance.String(),
		NoOp:            rcpt.NoOp,
	}
}
