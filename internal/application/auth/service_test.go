package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phishguard/phishguard/internal/domain/users"
)

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*users.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*users.User{}}
}

func (m *memUsers) Create(_ context.Context, u *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byEmail[u.Email]; dup {
		return users.ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func newTestService() *Service {
	return &Service{
		Users:    newMemUsers(),
		Secret:   []byte("test-secret"),
		TokenTTL: time.Hour,
	}
}

func TestRegisterLoginVerifyRoundtrip(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Alice@Example.com ", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if u.PasswordHash == "hunter22" || u.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}

	token, username, err := svc.Login(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if username != "alice" {
		t.Errorf("username = %q, want alice", username)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	ident, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.ID != u.ID || ident.Name != "alice" {
		t.Errorf("unexpected identity: %+v", ident)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob@example.com", "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "BOB@example.com", "password2"); !errors.Is(err, users.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol@example.com", "correct-horse"); err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "carol@example.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "nobody@example.com", "whatever")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()
	svc := newTestService()

	t.Run("garbage", func(t *testing.T) {
		if _, err := svc.Verify("not.a.token"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := &Service{Users: newMemUsers(), Secret: []byte("other-secret"), TokenTTL: time.Hour}
		token, err := other.issueToken("u1", "mallory")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := svc.Verify(token); err == nil {
			t.Fatal("token signed with another secret must be rejected")
		}
	})

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		claims := Claims{
			UserID:   "u1",
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(past),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.Secret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := svc.Verify(token); err == nil {
			t.Fatal("expired token must be rejected")
		}
	})
}
