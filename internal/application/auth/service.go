package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/phishguard/phishguard/internal/domain/identity"
	"github.com/phishguard/phishguard/internal/domain/users"
)

// ErrInvalidCredentials covers both "no such account" and "wrong
// password" so login failures do not leak which emails exist.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Claims carried inside the bearer token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service implements signup/login and token verification.
type Service struct {
	Users    users.Repository
	Secret   []byte
	TokenTTL time.Duration
}

// Register creates an account. The email's local part doubles as the
// display name.
func (s *Service) Register(ctx context.Context, email, password string) (*users.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if _, err := s.Users.FindByEmail(ctx, email); err == nil {
		return nil, users.ErrEmailTaken
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &users.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials and issues a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (token, username string, err error) {
	email = strings.TrimSpace(strings.ToLower(email))

	u, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	username = displayName(u.Email)
	token, err = s.issueToken(u.ID, username)
	if err != nil {
		return "", "", err
	}
	return token, username, nil
}

// Verify parses a bearer token and returns the identity it names.
func (s *Service) Verify(tokenString string) (identity.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.Secret, nil
	})
	if err != nil {
		return identity.Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return identity.Identity{}, errors.New("invalid token")
	}
	return identity.Identity{ID: claims.UserID, Name: claims.Username}, nil
}

func (s *Service) issueToken(userID, username string) (string, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func displayName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
