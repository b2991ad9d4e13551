package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/repository"
	"github.com/platformplatform/identity-service/internal/utils"
)

// emailLoginService implements EmailLoginService
type emailLoginService struct {
	uow          repository.UnitOfWork
	codeVerifier utils.CodeVerifier
	bcryptCost   int
	emailSender  EmailSender
	tokenIssuer  *TokenIssuer
	publisher    EventPublisher
	now          func() time.Time
}

// NewEmailLoginService creates a new email login service. The codeVerifier
// strategy is chosen by the caller from environment configuration; production
// wiring passes the bcrypt-only verifier.
func NewEmailLoginService(
	uow repository.UnitOfWork,
	codeVerifier utils.CodeVerifier,
	bcryptCost int,
	emailSender EmailSender,
	tokenIssuer *TokenIssuer,
	publisher EventPublisher,
) EmailLoginService {
	return &emailLoginService{
		uow:          uow,
		codeVerifier: codeVerifier,
		bcryptCost:   bcryptCost,
		emailSender:  emailSender,
		tokenIssuer:  tokenIssuer,
		publisher:    publisher,
		now:          time.Now,
	}
}

// Start creates an email login attempt and dispatches the code. Whether a
// user owns the email is deliberately not revealed at this stage.
func (s *emailLoginService) Start(ctx context.Context, loginType domain.LoginType, req *dto.StartEmailLoginRequest) (*dto.StartEmailLoginResponse, error) {
	email := utils.SanitizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return nil, BadRequest("Invalid email format")
	}

	code, err := utils.GenerateOneTimePassword(utils.OneTimePasswordLength)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashOneTimePassword(code, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	login := domain.NewEmailLogin(loginType, email, hash, now)

	err = s.uow.Execute(ctx, func(repos *repository.Repositories) error {
		return repos.EmailLogin.Create(ctx, login)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist email login: %w", err)
	}

	if err := s.emailSender.SendOneTimePassword(ctx, email, code, domain.EmailLoginValidFor); err != nil {
		return nil, fmt.Errorf("failed to dispatch one-time password: %w", err)
	}

	s.publisher.Publish(ctx, login.DrainEvents()...)

	return &dto.StartEmailLoginResponse{
		EmailLoginID:    login.ID,
		ValidForSeconds: login.ValidForSeconds(now),
	}, nil
}

// Complete verifies the code and, on success, resolves the user across
// tenants, marks the attempt completed, and mints a session. A failed
// attempt mutates the retry counter and that mutation commits even though
// the command fails.
func (s *emailLoginService) Complete(ctx context.Context, id string, req *dto.CompleteEmailLoginRequest, device DeviceDetails) (*AuthTokens, error) {
	now := s.now()

	var tokens *AuthTokens
	var events []domain.Event
	var cmdErr error

	txErr := s.uow.Execute(ctx, func(repos *repository.Repositories) error {

		login, err := repos.EmailLogin.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				cmdErr = NotFound("Email login not found")
				return nil
			}
			return err
		}

		if login.Completed {
			cmdErr = BadRequest("The email login has already been completed")
			return nil
		}
		if login.IsBlocked() {
			cmdErr = Forbidden("Too many attempts, please request a new code")
			return nil
		}
		// Expiry fires before any code comparison.
		if login.HasExpired(now) {
			cmdErr = BadRequest("The code is no longer valid, please request a new code")
			return nil
		}

		expected := login.ModifiedAt
		if !s.codeVerifier.Verify(req.OneTimePassword, login.OneTimePasswordHash) {
			blocked := login.RecordFailedAttempt(now)
			if err := repos.EmailLogin.Update(ctx, login, expected); err != nil {
				// A concurrent attempt won the race; its outcome stands.
				if errors.Is(err, repository.ErrConcurrentUpdate) {
					return BadRequest("The email login has already been completed")
				}
				return err
			}
			events = login.DrainEvents()
			if blocked {
				cmdErr = Forbidden("Too many attempts, please request a new code")
			} else {
				cmdErr = BadRequest("The code is wrong or no longer valid")
			}
			return nil
		}

		users, err := repos.User.GetAllByEmail(ctx, login.Email)
		if err != nil {
			return err
		}

		var user *domain.User
		if login.Type == domain.LoginTypeSignup {
			if len(users) > 0 {
				cmdErr = BadRequest("An account already exists for this email")
				return nil
			}
			user, err = provisionTenantOwner(ctx, repos, login.Email, now)
			if err != nil {
				return err
			}
		} else {
			if len(users) == 0 {
				cmdErr = NotFound("No user found for this email")
				return nil
			}
			user = selectUserForTenant(users, req.PreferredTenantID)

			// Completing with an unconfirmed email is accepting a pending invite.
			if !user.EmailConfirmed {
				user.ConfirmEmail(now)
				if err := repos.User.Update(ctx, user); err != nil {
					return err
				}
			}
		}

		if err := login.MarkCompleted(now); err != nil {
			cmdErr = BadRequest("The email login has already been completed")
			return nil
		}
		login.AddEvent(domain.EmailLoginCompleted{
			EmailLoginID: login.ID,
			TenantID:     user.TenantID,
			UserID:       user.ID,
		})
		if err := repos.EmailLogin.Update(ctx, login, expected); err != nil {
			if errors.Is(err, repository.ErrConcurrentUpdate) {
				return BadRequest("The email login has already been completed")
			}
			return err
		}

		session := domain.NewSession(user.TenantID, user.ID, domain.LoginMethodEmailOTP, device.UserAgent, device.IPAddress, now)
		if err := repos.Session.Create(ctx, session); err != nil {
			return err
		}

		tokens, err = s.tokenIssuer.Issue(user, session)
		if err != nil {
			return err
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
	return tokens, nil
}

// Resend regenerates the code and restarts the validity window without
// resetting the retry counter.
func (s *emailLoginService) Resend(ctx context.Context, id string) (*dto.ResendEmailLoginResponse, error) {
	now := s.now()

	code, err := utils.GenerateOneTimePassword(utils.OneTimePasswordLength)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashOneTimePassword(code, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	var email string
	var validForSeconds int
	var events []domain.Event

	txErr := s.uow.Execute(ctx, func(repos *repository.Repositories) error {

		login, err := repos.EmailLogin.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFound("Email login not found")
			}
			return err
		}

		expected := login.ModifiedAt
		if err := login.RegenerateCode(hash, now); err != nil {
			switch {
			case errors.Is(err, domain.ErrEmailLoginCompleted):
				return BadRequest("The email login has already been completed")
			case errors.Is(err, domain.ErrEmailLoginExpired):
				return BadRequest("The email login is no longer valid, please restart")
			case errors.Is(err, domain.ErrEmailLoginResendLimit):
				return Forbidden("Too many resends, please restart the login")
			}
			return err
		}
		if err := repos.EmailLogin.Update(ctx, login, expected); err != nil {
			return err
		}

		email = login.Email
		validForSeconds = login.ValidForSeconds(now)
		events = login.DrainEvents()
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if err := s.emailSender.SendOneTimePassword(ctx, email, code, domain.EmailLoginValidFor); err != nil {
		return nil, fmt.Errorf("failed to dispatch one-time password: %w", err)
	}

	s.publisher.Publish(ctx, events...)

	return &dto.ResendEmailLoginResponse{
		ValidForSeconds: validForSeconds,
	}, nil
}

// provisionTenantOwner creates a fresh tenant with a confirmed owner user
// for the signup flows.
func provisionTenantOwner(ctx context.Context, repos *repository.Repositories, email string, now time.Time) (*domain.User, error) {
	tenant := &domain.Tenant{Name: email, CreatedAt: now}
	if err := repos.Tenant.Create(ctx, tenant); err != nil {
		return nil, err
	}

	user := &domain.User{
		TenantID:       tenant.ID,
		ID:             domain.NewUserID(),
		Email:          email,
		EmailConfirmed: true,
		Role:           "Owner",
		CreatedAt:      now,
		ModifiedAt:     now,
	}
	if err := repos.User.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// selectUserForTenant picks the user for the preferred tenant when present,
// otherwise the first user in deterministic creation order.
func selectUserForTenant(users []*domain.User, preferredTenantID string) *domain.User {
	if preferredTenantID != "" {
		for _, user := range users {
			if user.TenantID == preferredTenantID {
				return user
			}
		}
	}
	return users[0]
}
