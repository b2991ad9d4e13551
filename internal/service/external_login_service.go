package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/oauth"
	"github.com/platformplatform/identity-service/internal/repository"
	"github.com/platformplatform/identity-service/internal/utils"
)

// externalLoginService implements ExternalLoginService
type externalLoginService struct {
	uow         repository.UnitOfWork
	providers   *oauth.Registry
	protector   *utils.StateTokenProtector
	tokenIssuer *TokenIssuer
	publisher   EventPublisher
	now         func() time.Time
}

// NewExternalLoginService creates a new external login service.
func NewExternalLoginService(
	uow repository.UnitOfWork,
	providers *oauth.Registry,
	protector *utils.StateTokenProtector,
	tokenIssuer *TokenIssuer,
	publisher EventPublisher,
) ExternalLoginService {
	return &externalLoginService{
		uow:         uow,
		providers:   providers,
		protector:   protector,
		tokenIssuer: tokenIssuer,
		publisher:   publisher,
		now:         time.Now,
	}
}

// Start creates an external login attempt with fresh PKCE material and a
// nonce, binds it to the browser fingerprint, and builds the provider
// authorization URL with the attempt id protected inside the state token.
func (s *externalLoginService) Start(ctx context.Context, provider string, loginType domain.LoginType, device DeviceDetails) (*StartExternalLoginResult, error) {
	p, ok := s.providers.Get(provider, flowName(loginType))
	if !ok {
		return nil, BadRequest(fmt.Sprintf("OAuth provider %q is not configured", provider))
	}

	codeVerifier, err := utils.GenerateCodeVerifier()
	if err != nil {
		return nil, err
	}
	nonce, err := utils.GenerateNonce()
	if err != nil {
		return nil, err
	}

	now := s.now()
	login := domain.NewExternalLogin(loginType, domain.ProviderType(p.Name()), codeVerifier, nonce, device.Fingerprint(), now)

	err = s.uow.Execute(ctx, func(repos *repository.Repositories) error {
		return repos.ExternalLogin.Create(ctx, login)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist external login: %w", err)
	}

	state, err := s.protector.Protect(login.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to protect state token: %w", err)
	}

	s.publisher.Publish(ctx, login.DrainEvents()...)

	return &StartExternalLoginResult{
		ExternalLoginID:  login.ID,
		AuthorizationURL: p.AuthCodeURL(state, utils.CodeChallengeS256(codeVerifier), nonce),
	}, nil
}

// Complete processes the provider callback. The state token and the
// cookie-carried id are two independent proofs and both must check out.
// Every terminal failure consumes the record with its specific result code;
// pre-record rejections (bad state, consumed record) mutate nothing.
func (s *externalLoginService) Complete(ctx context.Context, loginType domain.LoginType, req *CompleteExternalLoginRequest) (*CompleteExternalLoginResult, error) {
	now := s.now()

	id, err := s.protector.Unprotect(req.State, now)
	if err != nil {
		return nil, externalLoginRejected(req.CookieExternalLoginID, "invalid_request", err)
	}
	if req.CookieExternalLoginID == "" || id != req.CookieExternalLoginID {
		return nil, externalLoginRejected(id, "invalid_request", errors.New("state token does not match cookie reference"))
	}

	var result *CompleteExternalLoginResult
	var events []domain.Event
	var cmdErr error

	txErr := s.uow.Execute(ctx, func(repos *repository.Repositories) error {

		login, err := repos.ExternalLogin.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				cmdErr = externalLoginRejected(id, "invalid_request", err)
				return nil
			}
			return err
		}
		if login.Type != loginType {
			cmdErr = externalLoginRejected(id, "invalid_request", errors.New("login type mismatch"))
			return nil
		}
		if login.Consumed() {
			cmdErr = externalLoginRejected(id, "access_denied", domain.ErrExternalLoginConsumed)
			return nil
		}

		// fail consumes the record with a terminal result; the mutation
		// commits even though the command fails.
		fail := func(outcome domain.LoginResult, cause error) error {
			expected := login.ModifiedAt
			if err := login.Fail(outcome, now); err != nil {
				return err
			}
			if err := repos.ExternalLogin.Update(ctx, login, expected); err != nil {
				return err
			}
			events = login.DrainEvents()
			cmdErr = externalLoginFailure(login.ID, outcome, cause)
			return nil
		}

		if req.ProviderError != "" {
			return fail(domain.LoginResultCodeExchangeFailed,
				fmt.Errorf("provider returned error %q: %s", req.ProviderError, req.ProviderErrorDesc))
		}

		provider, ok := s.providers.Get(string(login.Provider), flowName(loginType))
		if !ok {
			cmdErr = externalLoginRejected(id, "invalid_request", fmt.Errorf("provider %q is not configured", login.Provider))
			return nil
		}

		claims, err := provider.Exchange(ctx, req.Code, login.CodeVerifier)
		if err != nil {
			return fail(domain.LoginResultCodeExchangeFailed, err)
		}
		if claims.Nonce != login.Nonce {
			return fail(domain.LoginResultCodeExchangeFailed, errors.New("nonce mismatch"))
		}
		if req.Device.Fingerprint() != login.BrowserFingerprint {
			return fail(domain.LoginResultCodeExchangeFailed, errors.New("browser fingerprint mismatch"))
		}

		email := utils.SanitizeEmail(claims.Email)

		var user *domain.User
		switch loginType {
		case domain.LoginTypeSignup:
			user, err = s.signupUser(ctx, repos, login.Provider, email, claims, now, fail)
		default:
			user, err = s.loginUser(ctx, repos, login.Provider, email, claims, req.PreferredTenantID, now, fail)
		}
		if err != nil {
			return err
		}
		if user == nil {
			// fail already recorded the terminal outcome.
			return nil
		}

		expected := login.ModifiedAt
		if err := login.Complete(email, now); err != nil {
			return err
		}
		if err := repos.ExternalLogin.Update(ctx, login, expected); err != nil {
			if errors.Is(err, repository.ErrConcurrentUpdate) {
				return externalLoginRejected(id, "access_denied", domain.ErrExternalLoginConsumed)
			}
			return err
		}

		session := domain.NewSession(user.TenantID, user.ID, loginMethodForProvider(login.Provider), req.Device.UserAgent, req.Device.IPAddress, now)
		if err := repos.Session.Create(ctx, session); err != nil {
			return err
		}

		tokens, err := s.tokenIssuer.Issue(user, session)
		if err != nil {
			return err
		}

		result = &CompleteExternalLoginResult{
			RedirectPath: safeReturnPath(req.ReturnPath),
			Tokens:       tokens,
		}
		events = append(events, user.DrainEvents()...)
		events = append(events, login.DrainEvents()...)
		events = append(events, session.DrainEvents()...)
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if len(events) > 0 {
		s.publisher.Publish(ctx, events...)
	}
	if cmdErr != nil {
		return nil, cmdErr
	}
	return result, nil
}

// loginUser resolves an existing user for the login path. Returns nil with
// no error when fail recorded a terminal outcome.
func (s *externalLoginService) loginUser(
	ctx context.Context,
	repos *repository.Repositories,
	provider domain.ProviderType,
	email string,
	claims *oauth.Claims,
	preferredTenantID string,
	now time.Time,
	fail func(domain.LoginResult, error) error,
) (*domain.User, error) {
	users, err := repos.User.GetAllByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fail(domain.LoginResultUserNotFound, nil)
	}
	user := selectUserForTenant(users, preferredTenantID)

	// A stored link returning a different provider-user-id means the email
	// was reassigned at the provider. Never overwrite the linkage.
	if linked, ok := user.LinkedIdentity(provider); ok && linked != claims.Sub {
		return nil, fail(domain.LoginResultIdentityMismatch, nil)
	}

	linkedBefore := len(user.Identities)
	if err := user.LinkIdentity(provider, claims.Sub, now); err != nil {
		return nil, fail(domain.LoginResultIdentityMismatch, err)
	}
	if len(user.Identities) > linkedBefore {
		identity := user.Identities[len(user.Identities)-1]
		if err := repos.User.LinkIdentity(ctx, user.ID, identity); err != nil {
			return nil, err
		}
	}

	// The provider verified this email; accept a pending invite if any.
	if !user.EmailConfirmed {
		user.ConfirmEmail(now)
	}
	user.BackfillProfile(claims.GivenName, claims.FamilyName, claims.Picture, now)
	if err := repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// signupUser creates a fresh tenant with the profile's email as owner.
func (s *externalLoginService) signupUser(
	ctx context.Context,
	repos *repository.Repositories,
	provider domain.ProviderType,
	email string,
	claims *oauth.Claims,
	now time.Time,
	fail func(domain.LoginResult, error) error,
) (*domain.User, error) {
	users, err := repos.User.GetAllByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(users) > 0 {
		return nil, fail(domain.LoginResultAccountAlreadyExists, nil)
	}

	user, err := provisionTenantOwner(ctx, repos, email, now)
	if err != nil {
		return nil, err
	}
	user.BackfillProfile(claims.GivenName, claims.FamilyName, claims.Picture, now)
	if err := repos.User.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := user.LinkIdentity(provider, claims.Sub, now); err != nil {
		return nil, err
	}
	if err := repos.User.LinkIdentity(ctx, user.ID, user.Identities[len(user.Identities)-1]); err != nil {
		return nil, err
	}
	return user, nil
}

func flowName(loginType domain.LoginType) string {
	if loginType == domain.LoginTypeSignup {
		return oauth.FlowSignup
	}
	return oauth.FlowLogin
}

func loginMethodForProvider(provider domain.ProviderType) domain.LoginMethod {
	switch provider {
	case domain.ProviderTypeGoogle:
		return domain.LoginMethodGoogle
	case domain.ProviderTypeMock:
		return domain.LoginMethodMock
	default:
		return domain.LoginMethod(provider)
	}
}

// safeReturnPath only accepts app-relative paths, defaulting to "/".
func safeReturnPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return "/"
	}
	return path
}
