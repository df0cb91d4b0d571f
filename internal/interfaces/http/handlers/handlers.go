package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/arvoria/authd/internal/domain"
	"go.uber.org/zap"
)

// clientIP extracts the remote address without the port. chi's RealIP
// middleware has already rewritten RemoteAddr when the request came
// through a trusted proxy.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// credentialsFromRequest gathers every client authentication input the
// request may carry. Classification of malformed credentials happens in
// the application layer, not here.
func credentialsFromRequest(r *http.Request) domain.ClientCredentials {
	return domain.ClientCredentials{
		ClientID:            r.PostFormValue("client_id"),
		ClientSecret:        r.PostFormValue("client_secret"),
		ClientAssertionType: r.PostFormValue("client_assertion_type"),
		ClientAssertion:     r.PostFormValue("client_assertion"),
		AuthorizationHeader: r.Header.Get("Authorization"),
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
