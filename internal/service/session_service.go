package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/repository"
	"github.com/platformplatform/identity-service/internal/utils"
)

// sessionService implements SessionService
type sessionService struct {
	uow         repository.UnitOfWork
	jwtManager  *utils.JWTManager
	tokenIssuer *TokenIssuer
	blacklist   *SessionBlacklistService
	publisher   EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewSessionService creates a new session service. blacklist may be nil when
// Redis is not configured; revocation then relies on refresh-time checks only.
func NewSessionService(
	uow repository.UnitOfWork,
	jwtManager *utils.JWTManager,
	tokenIssuer *TokenIssuer,
	blacklist *SessionBlacklistService,
	publisher EventPublisher,
	logger *zap.Logger,
) SessionService {
	return &sessionService{
		uow:         uow,
		jwtManager:  jwtManager,
		tokenIssuer: tokenIssuer,
		blacklist:   blacklist,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// Refresh rotates the refresh token for the session the token references.
// Presenting the previous JTI revokes the session; the revocation commits
// even though the call fails. Any other mismatch fails without touching the
// session, so an attacker probing with forged JTIs cannot lock a user out.
func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, Unauthorized("Invalid refresh token")
	}

	now := s.now()

	var tokens *AuthTokens
	var events []domain.Event
	var cmdErr error
	var revokedSessionID string

	txErr := s.uow.Execute(ctx, func(repos *repository.Repositories) error {

		session, err := repos.Session.GetByID(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				cmdErr = Unauthorized("Invalid refresh token")
				return nil
			}
			return err
		}

		expected := session.ModifiedAt
		switch err := session.Rotate(claims.Jti, now); {
		case err == nil:
			if err := repos.Session.Update(ctx, session, expected); err != nil {
				return err
			}
			user, err := repos.User.GetByID(ctx, session.UserID)
			if err != nil {
				return err
			}
			tokens, err = s.tokenIssuer.Issue(user, session)
			if err != nil {
				return err
			}
			events = session.DrainEvents()
			return nil

		case errors.Is(err, domain.ErrRefreshTokenReused):
			if err := repos.Session.Update(ctx, session, expected); err != nil {
				return err
			}
			events = session.DrainEvents()
			revokedSessionID = session.ID
			cmdErr = Unauthorized("Invalid refresh token")
			return nil

		default:
			// Revoked session or unknown JTI: reject without mutation.
			cmdErr = Unauthorized("Invalid refresh token")
			return nil
		}
	})
	if txErr != nil {
		return nil, txErr
	}

	if len(events) > 0 {
		s.publisher.Publish(ctx, events...)
	}
	if revokedSessionID != "" {
		s.blacklistSession(ctx, revokedSessionID)
	}
	if cmdErr != nil {
		return nil, cmdErr
	}
	return tokens, nil
}

// Logout revokes the session. Revoking an already revoked session is a no-op
// success so repeated logouts stay idempotent.
func (s *sessionService) Logout(ctx context.Context, sessionID string) error {
	now := s.now()

	var events []domain.Event
	var revoked bool

	txErr := s.uow.Execute(ctx, func(repos *repository.Repositories) error {

		session, err := repos.Session.GetByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFound("Session not found")
			}
			return err
		}

		expected := session.ModifiedAt
		if err := session.Revoke(domain.RevocationReasonLogout, now); err != nil {
			if errors.Is(err, domain.ErrSessionRevoked) {
				return nil
			}
			return err
		}
		if err := repos.Session.Update(ctx, session, expected); err != nil {
			return err
		}
		events = session.DrainEvents()
		revoked = true
		return nil
	})
	if txErr != nil {
		return txErr
	}

	if len(events) > 0 {
		s.publisher.Publish(ctx, events...)
	}
	if revoked {
		s.blacklistSession(ctx, sessionID)
	}
	return nil
}

// ValidateAccessToken verifies the signature and expiry and rejects tokens
// whose session has been blacklisted since issuance.
func (s *sessionService) ValidateAccessToken(ctx context.Context, token string) (*utils.AccessTokenClaims, error) {
	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return nil, Unauthorized("Invalid access token")
	}

	if s.blacklist != nil {
		blacklisted, err := s.blacklist.IsSessionBlacklisted(ctx, claims.SessionID)
		if err != nil {
			s.logger.Warn("session blacklist check failed", zap.Error(err))
		} else if blacklisted {
			return nil, Unauthorized("Session has been revoked")
		}
	}
	return claims, nil
}

// blacklistSession is best effort: a Redis outage must not turn a completed
// revocation into a failed request.
func (s *sessionService) blacklistSession(ctx context.Context, sessionID string) {
	if s.blacklist == nil {
		return
	}
	expiry := time.Duration(s.jwtManager.GetRefreshTokenExpiry()) * time.Second
	if err := s.blacklist.AddSession(ctx, sessionID, expiry); err != nil {
		s.logger.Warn("failed to blacklist revoked session",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
