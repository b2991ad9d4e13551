package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/repository"
	"github.com/platformplatform/identity-service/internal/utils"
)

type emailLoginFixture struct {
	store     *fakeStore
	sender    *recordingEmailSender
	publisher *capturingPublisher
	jwt       *utils.JWTManager
	svc       *emailLoginService
}

func newEmailLoginFixture(t *testing.T) *emailLoginFixture {
	t.Helper()

	store := newFakeStore()
	sender := &recordingEmailSender{}
	publisher := &capturingPublisher{}
	jwtManager := newTestJWTManager()

	svc := NewEmailLoginService(
		newFakeUnitOfWork(store),
		utils.BcryptCodeVerifier{},
		bcrypt.MinCost,
		sender,
		NewTokenIssuer(jwtManager),
		publisher,
	).(*emailLoginService)
	svc.now = func() time.Time { return fixedNow }

	return &emailLoginFixture{store: store, sender: sender, publisher: publisher, jwt: jwtManager, svc: svc}
}

func (f *emailLoginFixture) seedUser(tenantID, email string, confirmed bool, createdAt time.Time) *domain.User {
	user := &domain.User{
		TenantID:       tenantID,
		ID:             domain.NewUserID(),
		Email:          email,
		EmailConfirmed: confirmed,
		Role:           "Member",
		CreatedAt:      createdAt,
		ModifiedAt:     createdAt,
	}
	f.store.users = append(f.store.users, user)
	return user
}

func (f *emailLoginFixture) device() DeviceDetails {
	return DeviceDetails{UserAgent: "Mozilla/5.0 test", IPAddress: "203.0.113.7", AcceptLanguage: "en-US"}
}

func TestStartEmailLoginCreatesAttemptAndSendsCode(t *testing.T) {
	f := newEmailLoginFixture(t)

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: " User@Example.COM "})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.EmailLoginID, "emlog_"))
	assert.Equal(t, 600, resp.ValidForSeconds)

	stored := f.store.emailLogins[resp.EmailLoginID]
	require.NotNil(t, stored)
	assert.Equal(t, "user@example.com", stored.Email)
	assert.Equal(t, domain.LoginTypeLogin, stored.Type)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "user@example.com", f.sender.sent[0].recipient)
	assert.Len(t, f.sender.sent[0].code, utils.OneTimePasswordLength)

	assert.Equal(t, []string{"email_login.started"}, f.publisher.names())
}

func TestStartEmailLoginDoesNotRevealAccountExistence(t *testing.T) {
	f := newEmailLoginFixture(t)

	// No account owns this email, yet the start response is indistinguishable
	// from one for a registered address.
	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.EmailLoginID)
	assert.Len(t, f.sender.sent, 1)
}

func TestStartEmailLoginRejectsInvalidEmail(t *testing.T) {
	f := newEmailLoginFixture(t)

	_, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "not-an-email"})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)
	assert.Empty(t, f.sender.sent)
}

func TestCompleteEmailLoginUnknownID(t *testing.T) {
	f := newEmailLoginFixture(t)

	_, err := f.svc.Complete(context.Background(), "emlog_missing", &dto.CompleteEmailLoginRequest{OneTimePassword: "ABC234"}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
}

func TestCompleteEmailLoginWrongCodePersistsFailedAttempt(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: "WRONG2"}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)

	// The counter mutation commits even though the command failed.
	assert.Equal(t, 1, f.store.emailLogins[resp.EmailLoginID].RetryCount)
	assert.Contains(t, f.publisher.names(), "email_login.code_failed")
}

// contendedEmailLoginRepo simulates another request winning the write race
// between this command's load and its update.
type contendedEmailLoginRepo struct {
	repository.EmailLoginRepository
	store *fakeStore
}

func (r *contendedEmailLoginRepo) GetByID(ctx context.Context, id string) (*domain.EmailLogin, error) {
	login, err := r.EmailLoginRepository.GetByID(ctx, id)
	if err == nil {
		stored := r.store.emailLogins[id]
		stored.ModifiedAt = stored.ModifiedAt.Add(time.Millisecond)
	}
	return login, err
}

type contendedUnitOfWork struct {
	inner *fakeUnitOfWork
}

func (u *contendedUnitOfWork) Execute(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	return u.inner.Execute(ctx, func(repos *repository.Repositories) error {
		repos.EmailLogin = &contendedEmailLoginRepo{EmailLoginRepository: repos.EmailLogin, store: u.inner.store}
		return fn(repos)
	})
}

func TestCompleteEmailLoginLosingWriteRaceIsBadRequest(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	f.svc.uow = &contendedUnitOfWork{inner: newFakeUnitOfWork(f.store)}

	// Wrong code whose counter update loses the race: still a client error.
	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: "WRONG2"}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)

	// Same for the success path.
	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	kind, ok = KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)
}

func TestCompleteEmailLoginBlocksAfterMaxAttempts(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	for i := 0; i < domain.EmailLoginMaxAttempts-1; i++ {
		_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: "WRONG2"}, f.device())
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindBadRequest, kind)
	}

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: "WRONG2"}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, kind)
	assert.Contains(t, f.publisher.names(), "email_login.blocked")

	// The correct code no longer helps once the attempt is blocked.
	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	kind, ok = KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, kind)
}

func TestCompleteEmailLoginExpiredBeforeCodeComparison(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return fixedNow.Add(domain.EmailLoginValidFor + time.Second) }

	// Even the correct code is rejected and the retry counter stays put.
	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)
	assert.Equal(t, 0, f.store.emailLogins[resp.EmailLoginID].RetryCount)
}

func TestCompleteEmailLoginSuccess(t *testing.T) {
	f := newEmailLoginFixture(t)
	user := f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	tokens, err := f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	require.NoError(t, err)
	require.NotNil(t, tokens)

	claims, err := f.jwt.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "tnt_1", claims.TenantID)

	assert.True(t, f.store.emailLogins[resp.EmailLoginID].Completed)

	require.Len(t, f.store.sessions, 1)
	for _, session := range f.store.sessions {
		assert.Equal(t, user.ID, session.UserID)
		assert.Equal(t, domain.LoginMethodEmailOTP, session.LoginMethod)
		assert.Equal(t, session.ID, claims.SessionID)
	}

	names := f.publisher.names()
	assert.Contains(t, names, "email_login.completed")
	assert.Contains(t, names, "session.created")
}

func TestCompleteEmailLoginCaseInsensitiveCode(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	code := " " + strings.ToLower(f.sender.lastCode()) + " "
	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: code}, f.device())
	require.NoError(t, err)
}

func TestCompleteEmailLoginAlreadyCompleted(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)
}

func TestCompleteEmailLoginNoUser(t *testing.T) {
	f := newEmailLoginFixture(t)

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "nobody@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)

	// A correct code on a userless login must not consume the attempt.
	assert.False(t, f.store.emailLogins[resp.EmailLoginID].Completed)
}

func TestCompleteEmailLoginPreferredTenant(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-2*time.Hour))
	second := f.seedUser("tnt_2", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	tokens, err := f.svc.Complete(context.Background(), resp.EmailLoginID,
		&dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode(), PreferredTenantID: "tnt_2"}, f.device())
	require.NoError(t, err)

	claims, err := f.jwt.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, second.ID, claims.UserID)
	assert.Equal(t, "tnt_2", claims.TenantID)
}

func TestCompleteEmailLoginFallsBackToEarliestUser(t *testing.T) {
	f := newEmailLoginFixture(t)
	earliest := f.seedUser("tnt_2", "user@example.com", true, fixedNow.Add(-3*time.Hour))
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	// Unknown preferred tenant falls back to creation order.
	tokens, err := f.svc.Complete(context.Background(), resp.EmailLoginID,
		&dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode(), PreferredTenantID: "tnt_gone"}, f.device())
	require.NoError(t, err)

	claims, err := f.jwt.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, earliest.ID, claims.UserID)
}

func TestCompleteEmailLoginAcceptsPendingInvite(t *testing.T) {
	f := newEmailLoginFixture(t)
	user := f.seedUser("tnt_1", "invited@example.com", false, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "invited@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	require.NoError(t, err)

	assert.True(t, f.store.userByID(user.ID).EmailConfirmed)
	assert.Contains(t, f.publisher.names(), "invite.accepted")
}

func TestCompleteEmailSignupProvisionsTenantOwner(t *testing.T) {
	f := newEmailLoginFixture(t)

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeSignup, &dto.StartEmailLoginRequest{Email: "founder@example.com"})
	require.NoError(t, err)

	tokens, err := f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	require.NoError(t, err)
	require.NotNil(t, tokens)

	require.Len(t, f.store.tenants, 1)
	require.Len(t, f.store.users, 1)

	owner := f.store.users[0]
	assert.Equal(t, f.store.tenants[0].ID, owner.TenantID)
	assert.Equal(t, "founder@example.com", owner.Email)
	assert.Equal(t, "Owner", owner.Role)
	assert.True(t, owner.EmailConfirmed)

	claims, err := f.jwt.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, claims.UserID)
}

func TestCompleteEmailSignupRejectsExistingAccount(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "taken@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeSignup, &dto.StartEmailLoginRequest{Email: "taken@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)
	assert.Len(t, f.store.tenants, 0)
}

func TestResendEmailLoginRestartsWindow(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)
	oldCode := f.sender.lastCode()

	f.svc.now = func() time.Time { return fixedNow.Add(5 * time.Minute) }
	resend, err := f.svc.Resend(context.Background(), resp.EmailLoginID)
	require.NoError(t, err)
	assert.Equal(t, 600, resend.ValidForSeconds)
	require.Len(t, f.sender.sent, 2)
	assert.Contains(t, f.publisher.names(), "email_login.code_resent")

	// Twelve minutes after start but inside the restarted window; the old
	// code is dead, the fresh one completes.
	f.svc.now = func() time.Time { return fixedNow.Add(12 * time.Minute) }
	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: oldCode}, f.device())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	require.NoError(t, err)
}

func TestResendEmailLoginLimit(t *testing.T) {
	f := newEmailLoginFixture(t)

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	for i := 0; i < domain.EmailLoginMaxResends; i++ {
		_, err = f.svc.Resend(context.Background(), resp.EmailLoginID)
		require.NoError(t, err)
	}

	_, err = f.svc.Resend(context.Background(), resp.EmailLoginID)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, kind)
}

func TestResendEmailLoginAfterExpiry(t *testing.T) {
	f := newEmailLoginFixture(t)

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return fixedNow.Add(domain.EmailLoginValidFor + time.Minute) }
	_, err = f.svc.Resend(context.Background(), resp.EmailLoginID)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)
}

func TestResendEmailLoginAfterCompletion(t *testing.T) {
	f := newEmailLoginFixture(t)
	f.seedUser("tnt_1", "user@example.com", true, fixedNow.Add(-time.Hour))

	resp, err := f.svc.Start(context.Background(), domain.LoginTypeLogin, &dto.StartEmailLoginRequest{Email: "user@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), resp.EmailLoginID, &dto.CompleteEmailLoginRequest{OneTimePassword: f.sender.lastCode()}, f.device())
	require.NoError(t, err)

	_, err = f.svc.Resend(context.Background(), resp.EmailLoginID)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, kind)
}
