package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/tinoosan/vault/internal/vault"
)

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// replay writes the stored outcome for a previously completed operation.
// A key reuse with a different body is a conflict. Returns true if the
// request was handled here.
func (s *Server) replay(w http.ResponseWriter, r *http.Request, op opRequest) bool {
	if op.idemKey == "" {
		return false
	}
	rec, ok, err := s.idem.GetOperation(r.Context(), op.idemKey)
	if err != nil {
		s.log.Error("idempotency lookup failed", "err", err)
		return false
	}
	if !ok {
		return false
	}
	if rec.BodyHash != op.bodyHash {
		conflict(w, "idempotency key reused with a different payload")
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Payload)
	return true
}

// finish writes the response and records it under the idempotency key, if any.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, op opRequest, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	if op.idemKey != "" {
		rec := vault.IdempotencyRecord{BodyHash: op.bodyHash, Status: status, Payload: payload}
		if err := s.idem.SaveOperation(r.Context(), op.idemKey, rec); err != nil {
			s.log.Error("idempotency save failed", "err", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
