package handlers

import (
	"net/http"
	"net/url"

	"github.com/arvoria/authd/internal/domain"
	httperrors "github.com/arvoria/authd/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// OAuth2Handler serves the authorization, token and revocation
// endpoints.
type OAuth2Handler struct {
	grants domain.GrantService
	authz  domain.AuthorizationService
	logger *zap.Logger
}

// NewOAuth2Handler creates a new OAuth2Handler
func NewOAuth2Handler(grants domain.GrantService, authz domain.AuthorizationService, logger *zap.Logger) *OAuth2Handler {
	return &OAuth2Handler{
		grants: grants,
		authz:  authz,
		logger: logger,
	}
}

// TokenHandler handles POST /oauth2/token. The body is form-encoded per
// RFC 6749; success responses are marked uncacheable.
func (h *OAuth2Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("Failed to parse token request form", zap.Error(err))
		httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	req := &domain.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Scope:        r.PostFormValue("scope"),
		Credentials:  credentialsFromRequest(r),
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	}

	response, err := h.grants.Token(r.Context(), req)
	if err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, h.logger, http.StatusOK, response)
}

// RevokeHandler handles POST /oauth2/revoke (RFC 7009). Revoking an
// unknown token still returns 200.
func (h *OAuth2Handler) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("Failed to parse revocation request form", zap.Error(err))
		httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	req := &domain.RevocationRequest{
		Token:         r.PostFormValue("token"),
		TokenTypeHint: r.PostFormValue("token_type_hint"),
		Credentials:   credentialsFromRequest(r),
		IPAddress:     clientIP(r),
		UserAgent:     r.UserAgent(),
	}

	if err := h.grants.Revoke(r.Context(), req); err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AuthorizeHandler handles GET /oauth2/authorize for an authenticated
// resource owner. A valid request redirects back with the issued code;
// request errors redirect back with the error code, except failures to
// establish the client or its redirect URI, which must never redirect.
func (h *OAuth2Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := domain.GetSubject(r.Context())
	if !ok || userID == "" {
		h.logger.Warn("Authorization request without authenticated user")
		httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInvalidTokenKind, "authentication required"))
		return
	}

	req := h.authorizeRequest(r, userID)

	result, err := h.authz.Authorize(r.Context(), req)
	if err != nil {
		// Sentinel identity, not kind matching: other invalid_request
		// errors are still safe to redirect.
		switch err {
		case domain.ErrClientNotFound, domain.ErrInvalidClient, domain.ErrInvalidRedirectURI:
			httperrors.RespondWithError(w, err)
			return
		}
		h.redirectError(w, r, req, err)
		return
	}

	target, parseErr := url.Parse(result.RedirectURI)
	if parseErr != nil {
		h.logger.Error("Registered redirect URI failed to parse",
			zap.String("redirect_uri", result.RedirectURI),
			zap.Error(parseErr))
		httperrors.RespondWithError(w, domain.WrapServerError(parseErr))
		return
	}

	query := target.Query()
	query.Set("code", result.Code)
	if result.State != "" {
		query.Set("state", result.State)
	}
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// DenyHandler handles the resource owner refusing the authorization
// request. The client receives error=access_denied on its redirect URI.
func (h *OAuth2Handler) DenyHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := domain.GetSubject(r.Context())
	req := h.authorizeRequest(r, userID)

	result := h.authz.Deny(r.Context(), req)
	h.redirectError(w, r, &domain.AuthorizeRequest{
		RedirectURI: result.RedirectURI,
		State:       result.State,
	}, domain.NewOAuthError(domain.ErrAccessDenied, "the resource owner denied the request"))
}

func (h *OAuth2Handler) authorizeRequest(r *http.Request, userID string) *domain.AuthorizeRequest {
	query := r.URL.Query()
	return &domain.AuthorizeRequest{
		ResponseType:        query.Get("response_type"),
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		Nonce:               query.Get("nonce"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
		UserID:              userID,
		IPAddress:           clientIP(r),
		UserAgent:           r.UserAgent(),
	}
}

func (h *OAuth2Handler) redirectError(w http.ResponseWriter, r *http.Request, req *domain.AuthorizeRequest, err error) {
	oerr := domain.AsOAuthError(err)

	target, parseErr := url.Parse(req.RedirectURI)
	if parseErr != nil {
		httperrors.RespondWithError(w, oerr)
		return
	}

	query := target.Query()
	query.Set("error", string(oerr.Kind))
	if oerr.Description != "" {
		query.Set("error_description", oerr.Description)
	}
	if req.State != "" {
		query.Set("state", req.State)
	}
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}
