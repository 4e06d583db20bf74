package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/repository"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (m *memoryUserStore) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memoryUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

type memoryLoginStore struct {
	mu     sync.Mutex
	logins map[string]string
}

func (m *memoryLoginStore) Set(_ context.Context, userID, jti string, _ time.Duration) error {
	m.mu.Lock()
	m.logins[userID] = jti
	m.mu.Unlock()
	return nil
}

func (m *memoryLoginStore) Get(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins[userID], nil
}

func (m *memoryLoginStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.logins, userID)
	m.mu.Unlock()
	return nil
}

func newTestAuthProvider() *JWTAuthProvider {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
	return NewJWTAuthProvider(cfg,
		&memoryUserStore{users: make(map[string]*model.User)},
		&memoryLoginStore{logins: make(map[string]string)},
	)
}

func register(t *testing.T, p *JWTAuthProvider, email string) *model.User {
	t.Helper()
	u, err := p.Register(context.Background(), model.RegisterRequest{
		Email:    email,
		Name:     "Test User",
		Password: "correct-horse",
	}, model.RoleLearner)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

func TestRegisterNormalisesEmailAndRejectsDuplicates(t *testing.T) {
	p := newTestAuthProvider()
	u := register(t, p, "  Ada@Example.com ")
	if u.Email != "ada@example.com" {
		t.Fatalf("email = %q, want ada@example.com", u.Email)
	}
	if u.PasswordHash == "correct-horse" {
		t.Fatal("password stored in clear")
	}

	_, err := p.Register(context.Background(), model.RegisterRequest{
		Email: "ada@example.com", Name: "Again", Password: "whatever-else",
	}, model.RoleLearner)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate err = %v, want ErrEmailTaken", err)
	}
}

func TestSignInAndCurrentUser(t *testing.T) {
	p := newTestAuthProvider()
	ctx := context.Background()
	u := register(t, p, "ada@example.com")

	token, signedIn, err := p.SignIn(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if signedIn.ID != u.ID {
		t.Fatalf("user = %s, want %s", signedIn.ID, u.ID)
	}

	claims, err := p.CurrentUser(ctx, token)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if claims.UserID != u.ID.String() || claims.Role != model.RoleLearner {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	p := newTestAuthProvider()
	register(t, p, "ada@example.com")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "ada@example.com", password: "nope-nope"},
		{name: "unknown email", email: "bob@example.com", password: "correct-horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.SignIn(context.Background(), tt.email, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestNewSignInInvalidatesPreviousToken(t *testing.T) {
	p := newTestAuthProvider()
	ctx := context.Background()
	register(t, p, "ada@example.com")

	first, _, err := p.SignIn(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("first sign in: %v", err)
	}
	second, _, err := p.SignIn(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}

	if _, err := p.CurrentUser(ctx, first); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("first token err = %v, want ErrSessionInvalidated", err)
	}
	if _, err := p.CurrentUser(ctx, second); err != nil {
		t.Fatalf("second token: %v", err)
	}
}

func TestSignOut(t *testing.T) {
	p := newTestAuthProvider()
	ctx := context.Background()
	register(t, p, "ada@example.com")

	token, _, err := p.SignIn(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	claims, err := p.CurrentUser(ctx, token)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if err := p.SignOut(ctx, claims); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := p.CurrentUser(ctx, token); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("after sign out err = %v, want ErrSessionInvalidated", err)
	}
}

func TestCurrentUserRejectsBadTokens(t *testing.T) {
	p := newTestAuthProvider()
	ctx := context.Background()
	register(t, p, "ada@example.com")

	token, _, err := p.SignIn(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	other := newTestAuthProvider()
	other.cfg.JWTSecret = "another-secret"

	if _, err := other.CurrentUser(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret err = %v, want ErrInvalidToken", err)
	}
	if _, err := p.CurrentUser(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage err = %v, want ErrInvalidToken", err)
	}

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := p.CurrentUser(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired err = %v, want ErrInvalidToken", err)
	}
}
