package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arvoria/authd/internal/domain"
)

// ErrorResponse is the RFC 6749 error payload.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

func getStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrInvalidClientKind:
		return http.StatusUnauthorized
	case domain.ErrInvalidTokenKind:
		return http.StatusUnauthorized
	case domain.ErrInsufficientScope:
		return http.StatusForbidden
	case domain.ErrServerError:
		return http.StatusInternalServerError
	case domain.ErrTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	}

	return http.StatusBadRequest
}

// RespondWithError writes the OAuth2 error body for err. Token endpoint
// responses carry Cache-Control: no-store per RFC 6749 section 5.2, and
// client authentication failures challenge with WWW-Authenticate.
func RespondWithError(w http.ResponseWriter, err error) {
	oerr := domain.AsOAuthError(err)
	status := getStatus(oerr.Kind)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	switch oerr.Kind {
	case domain.ErrInvalidClientKind:
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	case domain.ErrInvalidTokenKind:
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer error="%s", error_description="%s"`, oerr.Kind, oerr.Description))
	case domain.ErrInsufficientScope:
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer error="%s", error_description="%s"`, oerr.Kind, oerr.Description))
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:            string(oerr.Kind),
		ErrorDescription: oerr.Description,
	})
}
