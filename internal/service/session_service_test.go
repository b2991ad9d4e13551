package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/utils"
)

type sessionFixture struct {
	store     *fakeStore
	publisher *capturingPublisher
	jwt       *utils.JWTManager
	svc       *sessionService
	user      *domain.User
	session   *domain.Session
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	store := newFakeStore()
	publisher := &capturingPublisher{}
	jwtManager := newTestJWTManager()

	svc := NewSessionService(
		newFakeUnitOfWork(store),
		jwtManager,
		NewTokenIssuer(jwtManager),
		nil,
		publisher,
		zap.NewNop(),
	).(*sessionService)
	svc.now = func() time.Time { return fixedNow }

	user := &domain.User{
		TenantID:       "tnt_1",
		ID:             domain.NewUserID(),
		Email:          "user@example.com",
		EmailConfirmed: true,
		Role:           "Member",
		CreatedAt:      fixedNow.Add(-time.Hour),
		ModifiedAt:     fixedNow.Add(-time.Hour),
	}
	store.users = append(store.users, user)

	session := domain.NewSession("tnt_1", user.ID, domain.LoginMethodEmailOTP, "Mozilla/5.0 test", "203.0.113.7", fixedNow.Add(-time.Hour))
	session.DrainEvents()
	store.sessions[session.ID] = session

	return &sessionFixture{store: store, publisher: publisher, jwt: jwtManager, svc: svc, user: user, session: session}
}

func (f *sessionFixture) refreshToken(t *testing.T, jti string, version int) string {
	t.Helper()
	token, err := f.jwt.GenerateRefreshToken(f.session.ID, jti, version)
	require.NoError(t, err)
	return token
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newSessionFixture(t)
	originalJti := f.session.RefreshTokenJti

	tokens, err := f.svc.Refresh(context.Background(), f.refreshToken(t, originalJti, 1))
	require.NoError(t, err)
	require.NotNil(t, tokens)

	stored := f.store.sessions[f.session.ID]
	assert.Equal(t, 2, stored.RefreshTokenVersion)
	assert.NotEqual(t, originalJti, stored.RefreshTokenJti)
	require.NotNil(t, stored.PreviousRefreshTokenJti)
	assert.Equal(t, originalJti, *stored.PreviousRefreshTokenJti)

	claims, err := f.jwt.ValidateRefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, f.session.ID, claims.SessionID)
	assert.Equal(t, stored.RefreshTokenJti, claims.Jti)
	assert.Equal(t, 2, claims.Version)

	accessClaims, err := f.jwt.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, accessClaims.UserID)

	assert.Equal(t, []string{"session.refresh_token_rotated"}, f.publisher.names())
}

func TestRefreshReuseOfPreviousTokenRevokesSession(t *testing.T) {
	f := newSessionFixture(t)
	firstToken := f.refreshToken(t, f.session.RefreshTokenJti, 1)

	_, err := f.svc.Refresh(context.Background(), firstToken)
	require.NoError(t, err)

	// Replaying the consumed token is theft evidence: the session dies and
	// that revocation is persisted even though the call fails.
	_, err = f.svc.Refresh(context.Background(), firstToken)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, kind)

	stored := f.store.sessions[f.session.ID]
	assert.True(t, stored.IsRevoked())
	require.NotNil(t, stored.RevokedReason)
	assert.Equal(t, domain.RevocationReasonReuseDetected, *stored.RevokedReason)
	assert.Contains(t, f.publisher.names(), "session.revoked")
}

func TestRefreshUnknownJtiRejectedWithoutMutation(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.Refresh(context.Background(), f.refreshToken(t, uuid.NewString(), 1))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, kind)

	// A forged JTI must not let an attacker lock the real user out.
	stored := f.store.sessions[f.session.ID]
	assert.False(t, stored.IsRevoked())
	assert.Equal(t, 1, stored.RefreshTokenVersion)
	assert.Empty(t, f.publisher.events)
}

func TestRefreshRevokedSessionRejected(t *testing.T) {
	f := newSessionFixture(t)
	currentJti := f.session.RefreshTokenJti

	require.NoError(t, f.svc.Logout(context.Background(), f.session.ID))
	f.publisher.events = nil

	_, err := f.svc.Refresh(context.Background(), f.refreshToken(t, currentJti, 1))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, kind)
	assert.Empty(t, f.publisher.events)
}

func TestRefreshMalformedToken(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.Refresh(context.Background(), "not.a.token")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, kind)
}

func TestRefreshAccessTokenRejected(t *testing.T) {
	f := newSessionFixture(t)

	accessToken, err := f.jwt.GenerateAccessToken(f.user.ID, "tnt_1", f.user.Email, f.user.Role, f.session.ID)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), accessToken)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, kind)
}

func TestRefreshUnknownSession(t *testing.T) {
	f := newSessionFixture(t)

	token, err := f.jwt.GenerateRefreshToken("sess_gone", uuid.NewString(), 1)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), token)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, kind)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Logout(context.Background(), f.session.ID))

	stored := f.store.sessions[f.session.ID]
	assert.True(t, stored.IsRevoked())
	require.NotNil(t, stored.RevokedReason)
	assert.Equal(t, domain.RevocationReasonLogout, *stored.RevokedReason)
	assert.Equal(t, []string{"session.revoked"}, f.publisher.names())
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Logout(context.Background(), f.session.ID))
	require.NoError(t, f.svc.Logout(context.Background(), f.session.ID))

	// The second logout neither fails nor re-publishes.
	assert.Equal(t, []string{"session.revoked"}, f.publisher.names())
}

func TestLogoutUnknownSession(t *testing.T) {
	f := newSessionFixture(t)

	err := f.svc.Logout(context.Background(), "sess_gone")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
}

func TestValidateAccessToken(t *testing.T) {
	f := newSessionFixture(t)

	token, err := f.jwt.GenerateAccessToken(f.user.ID, "tnt_1", f.user.Email, f.user.Role, f.session.ID)
	require.NoError(t, err)

	claims, err := f.svc.ValidateAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, claims.UserID)
	assert.Equal(t, f.session.ID, claims.SessionID)

	_, err = f.svc.ValidateAccessToken(context.Background(), "garbage")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, kind)
}
