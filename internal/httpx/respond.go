package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func writeFail(w http.ResponseWriter, code int, msg string, details ...string) {
	writeJSON(w, code, envelope{Error: &errorBody{Message: msg, Details: details}})
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// a 500 whose cause is logged but not exposed.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve *orders.ValidationError
	var se *orders.StockError
	switch {
	case errors.As(err, &ve):
		writeFail(w, http.StatusBadRequest, "Validation error", ve.Details...)
	case errors.As(err, &se):
		writeFail(w, http.StatusBadRequest, "Inventory check failed", se.Messages()...)
	case errors.Is(err, orders.ErrForbidden):
		writeFail(w, http.StatusForbidden, "Not authorized to access this order")
	case errors.Is(err, orders.ErrNotFound):
		writeFail(w, http.StatusNotFound, "Not found")
	case errors.Is(err, orders.ErrConflict):
		writeFail(w, http.StatusConflict, "Already exists")
	default:
		log.Error("request failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
