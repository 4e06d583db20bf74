package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/repository"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionInvalidated = errors.New("login session invalidated")
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	UserID string     `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

// AuthProvider authenticates users and resolves access tokens.
type AuthProvider interface {
	Register(ctx context.Context, req model.RegisterRequest, role model.Role) (*model.User, error)
	SignIn(ctx context.Context, email, password string) (string, *model.User, error)
	SignOut(ctx context.Context, claims *Claims) error
	CurrentUser(ctx context.Context, token string) (*Claims, error)
}

// UserStore is the account storage used by JWTAuthProvider.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// LoginStore tracks the single active token id of each user.
type LoginStore interface {
	Set(ctx context.Context, userID, jti string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// JWTAuthProvider issues HS256 tokens and keeps one active login per user.
// Signing in again replaces the previous login.
type JWTAuthProvider struct {
	cfg    *config.Config
	users  UserStore
	logins LoginStore
	now    func() time.Time
}

// NewJWTAuthProvider creates a new JWTAuthProvider.
func NewJWTAuthProvider(cfg *config.Config, users UserStore, logins LoginStore) *JWTAuthProvider {
	return &JWTAuthProvider{cfg: cfg, users: users, logins: logins, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (p *JWTAuthProvider) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	return string(hash), err
}

// Register creates an account with the given role.
func (p *JWTAuthProvider) Register(ctx context.Context, req model.RegisterRequest, role model.Role) (*model.User, error) {
	hash, err := p.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         role,
	}
	if err := p.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SignIn checks credentials and returns a signed token.
func (p *JWTAuthProvider) SignIn(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := p.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	jti := uuid.New().String()
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.JWTExpiry)),
		},
		UserID: u.ID.String(),
		Email:  u.Email,
		Role:   u.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(p.cfg.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if err := p.logins.Set(ctx, u.ID.String(), jti, p.cfg.JWTExpiry); err != nil {
		return "", nil, fmt.Errorf("store login: %w", err)
	}
	return signed, u, nil
}

// SignOut ends the login that issued claims.
func (p *JWTAuthProvider) SignOut(ctx context.Context, claims *Claims) error {
	return p.logins.Delete(ctx, claims.UserID)
}

// CurrentUser validates token and checks it belongs to the active login.
func (p *JWTAuthProvider) CurrentUser(ctx context.Context, token string) (*Claims, error) {
	claims, err := p.parse(token)
	if err != nil {
		return nil, err
	}

	stored, err := p.logins.Get(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("check login: %w", err)
	}
	if stored != claims.ID {
		return nil, ErrSessionInvalidated
	}
	return claims, nil
}

func (p *JWTAuthProvider) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(p.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RedisLoginStore keeps active token ids under config.CacheKey.LoginSessionKey.
type RedisLoginStore struct {
	rdb *redis.Client
}

// NewRedisLoginStore creates a new RedisLoginStore.
func NewRedisLoginStore(rdb *redis.Client) *RedisLoginStore {
	return &RedisLoginStore{rdb: rdb}
}

func (s *RedisLoginStore) Set(ctx context.Context, userID, jti string, ttl time.Duration) error {
	return s.rdb.Set(ctx, config.CacheKey.LoginSessionKey(userID), jti, ttl).Err()
}

// Get returns the active token id, or "" when the user is signed out.
func (s *RedisLoginStore) Get(ctx context.Context, userID string) (string, error) {
	jti, err := s.rdb.Get(ctx, config.CacheKey.LoginSessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return jti, err
}

func (s *RedisLoginStore) Delete(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, config.CacheKey.LoginSessionKey(userID)).Err()
}
