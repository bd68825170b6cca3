package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/lms-platform/internal/models"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

// IdentityConfig configures bearer token handling.
type IdentityConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

// IdentityService turns bearer tokens into caller identities. It performs no
// authorization; RBAC decides what an identity may do.
type IdentityService struct {
	config IdentityConfig
	now    func() time.Time
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(config IdentityConfig) *IdentityService {
	if config.Expiry <= 0 {
		config.Expiry = 24 * time.Hour
	}
	return &IdentityService{config: config, now: time.Now}
}

// IssueToken signs an HS256 token whose subject is identity.
func (s *IdentityService) IssueToken(identity, name string) (string, time.Time, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || identity == models.AnonymousIdentity {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "identity required")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.IdentityClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, appErrors.Internal(err, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// ValidateToken parses a token and returns its claims.
func (s *IdentityService) ValidateToken(tokenString string) (*models.IdentityClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUserNotAuthenticated.Code, appErrors.ErrUserNotAuthenticated.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUserNotAuthenticated, "invalid token claims")
	}
	return claims, nil
}
