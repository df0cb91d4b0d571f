package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arvoria/authd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid_request maps to 400",
			err:        domain.NewOAuthError(domain.ErrInvalidRequest, "missing grant_type"),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "invalid_grant maps to 400",
			err:        domain.ErrInvalidAuthorizationCode,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_grant",
		},
		{
			name:       "invalid_client maps to 401",
			err:        domain.ErrInvalidClient,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_client",
		},
		{
			name:       "invalid_token maps to 401",
			err:        domain.NewOAuthError(domain.ErrInvalidTokenKind, "missing bearer token"),
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_token",
		},
		{
			name:       "insufficient_scope maps to 403",
			err:        domain.NewOAuthError(domain.ErrInsufficientScope, "token lacks required scope openid"),
			wantStatus: http.StatusForbidden,
			wantError:  "insufficient_scope",
		},
		{
			name:       "server_error maps to 500",
			err:        domain.ErrInternal,
			wantStatus: http.StatusInternalServerError,
			wantError:  "server_error",
		},
		{
			name:       "temporarily_unavailable maps to 503",
			err:        domain.NewOAuthError(domain.ErrTemporarilyUnavailable, "rate limit exceeded"),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "temporarily_unavailable",
		},
		{
			name:       "unclassified error becomes server_error",
			err:        errors.New("database is down"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondWithError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}

func TestRespondWithError_Challenges(t *testing.T) {
	t.Run("invalid_client challenges with Basic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithError(rec, domain.ErrInvalidClient)

		assert.Equal(t, `Basic realm="token"`, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("invalid_token challenges with Bearer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithError(rec, domain.NewOAuthError(domain.ErrInvalidTokenKind, "invalid access token"))

		assert.Equal(t, `Bearer error="invalid_token", error_description="invalid access token"`, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("insufficient_scope challenges with Bearer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithError(rec, domain.NewOAuthError(domain.ErrInsufficientScope, "token lacks required scope openid"))

		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `Bearer error="insufficient_scope"`)
	})

	t.Run("invalid_grant carries no challenge", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondWithError(rec, domain.ErrInvalidAuthorizationCode)

		assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	})
}

func TestRespondWithError_BodyNeverLeaksCause(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, domain.WrapServerError(errors.New("pq: connection refused")))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "server_error", body.Error)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
