package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims carries the identity claims embedded in an access token.
type AccessTokenClaims struct {
	UserID    string
	TenantID  string
	Email     string
	Role      string
	SessionID string
	Exp       int64
	Iat       int64
}

// IsExpired checks if the token is expired.
func (tc AccessTokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}

// RefreshTokenClaims carries only the session reference a refresh token
// needs: session id, the rotating JTI, and the monotonic version.
type RefreshTokenClaims struct {
	SessionID string
	Jti       string
	Version   int
}

// JWTManager signs and validates access and refresh tokens. It is the seam in
// front of the signing key material; everything else treats it as an oracle.
type JWTManager struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(secret string, accessTokenExpiry, refreshTokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:             []byte(secret),
		accessTokenExpiry:  accessTokenExpiry,
		refreshTokenExpiry: refreshTokenExpiry,
	}
}

// GenerateAccessToken signs a short-lived token carrying user, tenant, and
// role claims.
func (j *JWTManager) GenerateAccessToken(userID, tenantID, email, role, sessionID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       userID,
		"tenant_id": tenantID,
		"email":     email,
		"role":      role,
		"sid":       sessionID,
		"exp":       now.Add(j.accessTokenExpiry).Unix(),
		"iat":       now.Unix(),
	})

	tokenString, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, nil
}

// GenerateRefreshToken signs a longer-lived token carrying only the session
// id, the rotating JTI, and the refresh-token version.
func (j *JWTManager) GenerateRefreshToken(sessionID, jti string, version int) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid":  sessionID,
		"jti":  jti,
		"ver":  version,
		"type": "refresh",
		"exp":  now.Add(j.refreshTokenExpiry).Unix(),
		"iat":  now.Unix(),
	})

	tokenString, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return tokenString, nil
}

func (j *JWTManager) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ValidateAccessToken validates an access token and returns its claims.
func (j *JWTManager) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims["type"] == "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}

	userID, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid sub in token")
	}
	tenantID, ok := claims["tenant_id"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid tenant_id in token")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	sessionID, _ := claims["sid"].(string)

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid exp in token")
	}
	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid iat in token")
	}

	tokenClaims := &AccessTokenClaims{
		UserID:    userID,
		TenantID:  tenantID,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		Exp:       int64(exp),
		Iat:       int64(iat),
	}
	if tokenClaims.IsExpired() {
		return nil, fmt.Errorf("token is expired")
	}
	return tokenClaims, nil
}

// ValidateRefreshToken validates a refresh token and returns the session
// reference it carries.
func (j *JWTManager) ValidateRefreshToken(tokenString string) (*RefreshTokenClaims, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims["type"] != "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}

	sessionID, ok := claims["sid"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid sid in token")
	}
	jti, ok := claims["jti"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid jti in token")
	}
	version, ok := claims["ver"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid ver in token")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid exp in token")
	}
	if time.Now().Unix() > int64(exp) {
		return nil, fmt.Errorf("token is expired")
	}

	return &RefreshTokenClaims{
		SessionID: sessionID,
		Jti:       jti,
		Version:   int(version),
	}, nil
}

// GetAccessTokenExpiry returns the access token expiry duration in seconds.
func (j *JWTManager) GetAccessTokenExpiry() int {
	return int(j.accessTokenExpiry.Seconds())
}

// GetRefreshTokenExpiry returns the refresh token expiry duration in seconds.
func (j *JWTManager) GetRefreshTokenExpiry() int {
	return int(j.refreshTokenExpiry.Seconds())
}
