package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RateLimitEnvelope is the body of every 429 caused by an email rate limit.
type RateLimitEnvelope struct {
	Error     string    `json:"error"`
	ResetTime time.Time `json:"reset_time"`
}

// AuthEnvelope wraps login and refresh responses.
type AuthEnvelope struct {
	Bearer       string          `json:"Bearer,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session"`
}

// PaginatedUsersEnvelope wraps cursor-paginated user lists.
type PaginatedUsersEnvelope struct {
	Data       []domain.User `json:"data"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// PublicUser is what other users may see of an account.
type PublicUser struct {
	UserID    string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func toPublicUser(u *domain.User) PublicUser {
	return PublicUser{UserID: u.UserID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decode reads a JSON body into dst and runs its validate tags.
// It writes the error response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// httpError maps domain errors to status codes. Unknown errors are logged and
// answered with a generic 500 so store details never reach the client.
func httpError(w http.ResponseWriter, err error) {
	var rl *domain.RateLimitError
	switch {
	case errors.As(err, &rl):
		retry := int(math.Ceil(time.Until(rl.ResetTime).Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
		writeJSON(w, http.StatusTooManyRequests, RateLimitEnvelope{
			Error:     "too many requests, try again later",
			ResetTime: rl.ResetTime.UTC(),
		})
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidToken.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
