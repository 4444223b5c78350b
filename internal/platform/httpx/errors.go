package httpx

import (
	"errors"
	"net/http"

	"github.com/clinistock/clinistock/internal/shared"
)

// RespondError maps domain errors to HTTP statuses using the shared
// error taxonomy. Unknown errors become a bare 500 envelope.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, shared.ErrIntegrity):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrBusinessRule):
		status = http.StatusUnprocessableEntity
	}
	JSON(w, status, Envelope{Success: false, Message: shared.UserSafeMessage(err)})
}
