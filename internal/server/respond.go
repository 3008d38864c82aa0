package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/divvyapp/divvy/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses. Integrity
// faults indicate corrupted history and are logged loudly; unknown errors
// are hidden behind a generic 500.
func writeError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var status int
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		slog.Error("ledger integrity fault", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, apperr.Validation("%s is required", field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperr.Validation("invalid %s %q", field, value)
	}
	return d, nil
}

func parseAmountMap(field string, values map[string]string) (map[string]decimal.Decimal, error) {
	if values == nil {
		return nil, nil
	}
	out := make(map[string]decimal.Decimal, len(values))
	for userID, value := range values {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, apperr.Validation("invalid %s for %s: %q", field, userID, value)
		}
		out[userID] = d
	}
	return out, nil
}
