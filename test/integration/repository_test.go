package integration

import (
	"context"
	"testing"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/database"
	"github.com/arvoria/authd/internal/infrastructure/repository"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	seedUserID   = "01HGW2N7EHJVJ4CJ999RRS2E97"
	seedClientID = "web-app"
)

func seedFixtures(t *testing.T, ctx context.Context, db *database.Postgres) {
	t.Helper()

	err := db.Exec(ctx, `
		INSERT INTO users (id, email, email_verified, name, given_name, family_name, preferred_username, roles)
		VALUES ($1, 'user@example.com', true, 'Test User', 'Test', 'User', 'testuser', $2)
	`, seedUserID, []string{"admin", "viewer"})
	require.NoError(t, err)

	err = db.Exec(ctx, `
		INSERT INTO role_permissions (role, permission) VALUES
			('admin', 'orders:write'),
			('admin', 'orders:read'),
			('viewer', 'orders:read')
	`)
	require.NoError(t, err)

	err = db.Exec(ctx, `
		INSERT INTO oauth2_clients (id, secret_hash, is_public, is_active, redirect_uris, grant_types, scopes)
		VALUES ($1, 'argon2-hash', false, true,
			'["https://app.example.com/callback"]',
			'["authorization_code","refresh_token"]',
			'["openid","profile","email"]')
	`, seedClientID)
	require.NoError(t, err)
}

func TestRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, cfg := setupTestContainerWithMigrations(t)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	db, err := database.NewPostgres(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	seedFixtures(t, ctx, db)

	logger := zap.NewNop()
	clients := repository.NewClientRepository(db, logger)
	users := repository.NewUserRepository(db, logger)
	codes := repository.NewCodeRepository(db, logger)
	tokens := repository.NewTokenRepository(db, logger)
	scopes := repository.NewScopeRepository(db, logger)
	revocations := repository.NewRevocationRepository(db, logger)
	audits := repository.NewAuditRepository(db, logger)

	t.Run("client lookup", func(t *testing.T) {
		client, err := clients.FindByID(ctx, seedClientID)
		require.NoError(t, err)
		assert.Equal(t, seedClientID, client.ID)
		assert.True(t, client.IsActive)
		assert.False(t, client.IsPublic)
		assert.Equal(t, []string{"https://app.example.com/callback"}, client.RedirectURIs)
		assert.Equal(t, []string{"authorization_code", "refresh_token"}, client.GrantTypes)
		assert.Equal(t, []string{"openid", "profile", "email"}, client.Scopes)

		_, err = clients.FindByID(ctx, "no-such-client")
		assert.Equal(t, domain.ErrClientNotFound, err)
	})

	t.Run("user lookup and permission aggregation", func(t *testing.T) {
		id := domain.MustParseULID(seedUserID)

		user, err := users.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", user.Email)
		assert.True(t, user.EmailVerified)
		assert.Equal(t, []string{"admin", "viewer"}, user.Roles)

		permissions, err := users.GetPermissions(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"orders:read", "orders:write"}, permissions)
	})

	t.Run("authorization code is consumed exactly once", func(t *testing.T) {
		code := &domain.AuthorizationCode{
			Code:                "integration-code-1",
			ClientID:            seedClientID,
			UserID:              seedUserID,
			RedirectURI:         "https://app.example.com/callback",
			Scopes:              []string{"openid", "profile"},
			CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
			CodeChallengeMethod: "S256",
			CreatedAt:           time.Now().UTC(),
			ExpiresAt:           time.Now().UTC().Add(10 * time.Minute),
		}
		require.NoError(t, codes.Create(ctx, code))

		consumed, err := codes.Consume(ctx, code.Code)
		require.NoError(t, err)
		assert.Equal(t, seedClientID, consumed.ClientID)
		assert.Equal(t, seedUserID, consumed.UserID)
		assert.Equal(t, []string{"openid", "profile"}, consumed.Scopes)
		assert.Equal(t, "S256", consumed.CodeChallengeMethod)
		require.NotNil(t, consumed.ConsumedAt)

		_, err = codes.Consume(ctx, code.Code)
		assert.Equal(t, domain.ErrInvalidAuthorizationCode, err)
	})

	t.Run("expired authorization code cannot be consumed", func(t *testing.T) {
		code := &domain.AuthorizationCode{
			Code:        "integration-code-expired",
			ClientID:    seedClientID,
			UserID:      seedUserID,
			RedirectURI: "https://app.example.com/callback",
			Scopes:      []string{"openid"},
			CreatedAt:   time.Now().UTC().Add(-time.Hour),
			ExpiresAt:   time.Now().UTC().Add(-time.Minute),
		}
		require.NoError(t, codes.Create(ctx, code))

		_, err := codes.Consume(ctx, code.Code)
		assert.Equal(t, domain.ErrInvalidAuthorizationCode, err)

		deleted, err := codes.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))
	})

	t.Run("access token round trip", func(t *testing.T) {
		record := &domain.AccessTokenRecord{
			ID:        ulid.Make().String(),
			TokenHash: "access-hash-1",
			JTI:       "jti-access-1",
			ClientID:  seedClientID,
			UserID:    seedUserID,
			Scopes:    []string{"openid"},
			CreatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
		require.NoError(t, tokens.CreateAccessToken(ctx, record))

		found, err := tokens.FindAccessTokenByHash(ctx, "access-hash-1")
		require.NoError(t, err)
		assert.Equal(t, record.ID, found.ID)
		assert.Equal(t, record.JTI, found.JTI)
		assert.Equal(t, seedUserID, found.UserID)

		_, err = tokens.FindAccessTokenByHash(ctx, "no-such-hash")
		assert.Equal(t, pgx.ErrNoRows, err)
	})

	t.Run("refresh token rotation guard", func(t *testing.T) {
		record := &domain.RefreshTokenRecord{
			ID:        ulid.Make().String(),
			TokenHash: "refresh-hash-1",
			JTI:       "jti-refresh-1",
			ClientID:  seedClientID,
			UserID:    seedUserID,
			Scopes:    []string{"openid", "profile"},
			CreatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(720 * time.Hour),
		}
		require.NoError(t, tokens.CreateRefreshToken(ctx, record))

		found, err := tokens.FindRefreshTokenByHash(ctx, "refresh-hash-1")
		require.NoError(t, err)
		assert.False(t, found.IsRevoked)
		assert.Empty(t, found.PreviousTokenID)

		won, err := tokens.RevokeRefreshToken(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, won)

		// The second revocation of the same record loses the race.
		won, err = tokens.RevokeRefreshToken(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, won)

		found, err = tokens.FindRefreshTokenByHash(ctx, "refresh-hash-1")
		require.NoError(t, err)
		assert.True(t, found.IsRevoked)
		require.NotNil(t, found.RevokedAt)
	})

	t.Run("refresh token chain revocation", func(t *testing.T) {
		first := &domain.RefreshTokenRecord{
			ID:        ulid.Make().String(),
			TokenHash: "chain-hash-1",
			JTI:       "jti-chain-1",
			ClientID:  seedClientID,
			UserID:    seedUserID,
			Scopes:    []string{"openid"},
			IsRevoked: true,
			CreatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(720 * time.Hour),
		}
		require.NoError(t, tokens.CreateRefreshToken(ctx, first))

		second := &domain.RefreshTokenRecord{
			ID:              ulid.Make().String(),
			TokenHash:       "chain-hash-2",
			JTI:             "jti-chain-2",
			ClientID:        seedClientID,
			UserID:          seedUserID,
			Scopes:          []string{"openid"},
			PreviousTokenID: first.ID,
			CreatedAt:       time.Now().UTC(),
			ExpiresAt:       time.Now().UTC().Add(720 * time.Hour),
		}
		require.NoError(t, tokens.CreateRefreshToken(ctx, second))

		third := &domain.RefreshTokenRecord{
			ID:              ulid.Make().String(),
			TokenHash:       "chain-hash-3",
			JTI:             "jti-chain-3",
			ClientID:        seedClientID,
			UserID:          seedUserID,
			Scopes:          []string{"openid"},
			PreviousTokenID: second.ID,
			CreatedAt:       time.Now().UTC(),
			ExpiresAt:       time.Now().UTC().Add(720 * time.Hour),
		}
		require.NoError(t, tokens.CreateRefreshToken(ctx, third))

		// Replaying the already-revoked first record kills its successors.
		revoked, err := tokens.RevokeRefreshTokenChain(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), revoked)

		for _, hash := range []string{"chain-hash-2", "chain-hash-3"} {
			found, err := tokens.FindRefreshTokenByHash(ctx, hash)
			require.NoError(t, err)
			assert.True(t, found.IsRevoked, "successor %s should be revoked", hash)
		}
	})

	t.Run("scope catalog", func(t *testing.T) {
		found, err := scopes.FindByNames(ctx, []string{"openid", "email", "no-such-scope"})
		require.NoError(t, err)
		require.Len(t, found, 2)

		active, err := scopes.ListActive(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(active))
		for _, scope := range active {
			names = append(names, scope.Name)
		}
		assert.Contains(t, names, "openid")
		assert.Contains(t, names, "profile")
		assert.Contains(t, names, "email")
		assert.Contains(t, names, "offline_access")
	})

	t.Run("revocation blacklist", func(t *testing.T) {
		require.NoError(t, revocations.Add(ctx, "jti-revoked-1", time.Now().UTC().Add(time.Hour)))

		blocked, err := revocations.Contains(ctx, "jti-revoked-1")
		require.NoError(t, err)
		assert.True(t, blocked)

		blocked, err = revocations.Contains(ctx, "jti-unknown")
		require.NoError(t, err)
		assert.False(t, blocked)

		require.NoError(t, revocations.Add(ctx, "jti-stale", time.Now().UTC().Add(-time.Minute)))
		pruned, err := revocations.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pruned, int64(1))
	})

	t.Run("audit record append", func(t *testing.T) {
		record := &domain.AuditRecord{
			ID:           ulid.Make().String(),
			ActorType:    domain.ActorClient,
			ActorID:      seedClientID,
			Action:       domain.AuditActionTokenIssue,
			ResourceType: "oauth2_token",
			Status:       domain.AuditSuccess,
			Metadata:     map[string]string{"grant_type": "authorization_code"},
			IPAddress:    "10.0.0.1",
			UserAgent:    "integration-test",
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, audits.Create(ctx, record))

		var action string
		var status string
		err := db.QueryRow(ctx, `
			SELECT action, status FROM audit_records WHERE id = $1
		`, record.ID).Scan(&action, &status)
		require.NoError(t, err)
		assert.Equal(t, domain.AuditActionTokenIssue, action)
		assert.Equal(t, string(domain.AuditSuccess), status)
	})
}
