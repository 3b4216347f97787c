package services

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// SessionScheme verifies locally issued HS256 access tokens. It is the last
// scheme, so any failure rejects the credential.
type SessionScheme struct {
	secret []byte
	now    func() time.Time
}

func NewSessionScheme(secret string) *SessionScheme {
	return &SessionScheme{secret: []byte(secret), now: time.Now}
}

func (s *SessionScheme) Name() string { return "session" }

func (s *SessionScheme) Attempt(_ context.Context, credential string) SchemeResult {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(credential, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return rejected(err)
	}
	if claims.Subject == "" {
		return rejected(errors.New("token has no subject"))
	}
	return resolved(&Identity{Email: claims.Subject})
}

// Issue signs an access token whose subject is the account email.
func (s *SessionScheme) Issue(user *models.User, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": user.Email,
		"uid": user.ID.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
