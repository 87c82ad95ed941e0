package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/store"
)

// queryInt reads an integer query parameter, clamped to [1, 100].
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps store errors onto HTTP statuses. Unknown errors become a
// 500 and are logged; their detail stays out of the response body.
func statusFor(err error) int {
	var verr store.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, database.ErrProfileNotFound),
		errors.Is(err, database.ErrListingNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrAddressNotFound),
		errors.Is(err, database.ErrRoomNotFound),
		errors.Is(err, database.ErrVerificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrNicknameTaken),
		errors.Is(err, database.ErrAlreadyReviewed),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrAddressLimit),
		errors.Is(err, database.ErrRoomMismatch):
		return http.StatusConflict
	case errors.Is(err, database.ErrNotParticipant),
		errors.Is(err, database.ErrSellerNotApproved):
		return http.StatusForbidden
	case errors.Is(err, database.ErrListingUnpriced):
		return http.StatusUnprocessableEntity
	default:
		log.Printf("internal error: %v", err)
		return http.StatusInternalServerError
	}
}
