package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"screening/internal/platform/middleware"
	dErrors "screening/pkg/domain-errors"
)

// Claims are the operator access token claims. Tokens are issued by the
// administration identity provider; this service only verifies them.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTService validates HS256 operator tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

// NewJWTService builds a validator. Empty issuer or audience disables that check.
func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken signs a token for subject. Used by tests and local tooling.
func (s *JWTService) GenerateAccessToken(subject, scope string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	}
	if s.audience != "" {
		claims.Audience = []string{s.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *JWTService) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}
	return opts
}

func (s *JWTService) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, s.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return claims, nil
}

// ValidateToken satisfies middleware.JWTValidator.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		Subject: claims.Subject,
		Scope:   claims.Scope,
		JTI:     claims.ID,
	}, nil
}
