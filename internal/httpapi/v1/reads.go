package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// getBalance handles GET /v1/accounts/{id}/balance. Reads always succeed;
// unknown accounts report zero.
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}
	balance, err := s.svc.Balance(r.Context(), account)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load balance", "")
		return
	}
	minor, _ := balance.MinorUnits()
	toJSON(w, http.StatusOK, balanceResponse{
		AccountID:    account,
		Currency:     balance.Curr().Code(),
		BalanceMinor: minor,
		Balance:      balance.String(),
	})
}

// getCounters handles GET /v1/accounts/{id}/counters.
func (s *Server) getCounters(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}
	c, err := s.svc.AccountCounters(r.Context(), account)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load counters", "")
		return
	}
	toJSON(w, http.StatusOK, countersResponse{AccountID: account, Deposits: c.Deposits, Withdrawals: c.Withdrawals})
}

// getVault handles GET /v1/vault: the immutable parameters plus current
// totals and global counters.
func (s *Server) getVault(w http.ResponseWriter, r *http.Request) {
	total, err := s.svc.TotalHeld(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load vault state", "")
		return
	}
	c, err := s.svc.VaultCounters(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load vault state", "")
		return
	}
	p := s.svc.Params()
	capacityMinor, _ := p.Capacity.MinorUnits()
	limitMinor, _ := p.WithdrawalLimit.MinorUnits()
	totalMinor, _ := total.MinorUnits()
	toJSON(w, http.StatusOK, vaultResponse{
		Currency:             p.Currency,
		CapacityMinor:        capacityMinor,
		WithdrawalLimitMinor: limitMinor,
		TotalHeldMinor:       totalMinor,
		TotalHeld:            total.String(),
		Deposits:             c.Deposits,
		Withdrawals:          c.Withdrawals,
	})
}

func accountParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return uuid.Nil, false
	}
	return id, true
}
