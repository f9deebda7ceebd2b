package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chatcoach/internal/model"
	"chatcoach/internal/pkg/jwtutil"
	"chatcoach/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredential  = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenOwnerMismatch = errors.New("token owner mismatch")
)

// AuthCache is the slice of the session cache the auth flow needs:
// the refresh-token blacklist and the logout key purge.
type AuthCache interface {
	BlacklistRefreshToken(ctx context.Context, token string, ttl time.Duration) error
	IsRefreshTokenBlacklisted(ctx context.Context, token string) (bool, error)
	PurgeUserKeys(ctx context.Context, email string) error
}

type AuthService struct {
	userRepo      *repository.UserRepository
	cache         AuthCache
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func NewAuthService(
	userRepo *repository.UserRepository,
	cache AuthCache,
	accessSecret, refreshSecret string,
	accessTTL, refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		cache:         cache,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (s *AuthService) Register(input RegisterInput) (*model.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	name := strings.TrimSpace(input.Name)

	if email == "" || name == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	exists, err := s.userRepo.ExistsByEmail(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) CheckEmail(email string) (bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return false, ErrInvalidInput
	}
	return s.userRepo.ExistsByEmail(email)
}

func (s *AuthService) Login(input LoginInput) (*TokenPair, *model.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	if email == "" || password == "" {
		return nil, nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredential
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh trades a valid, non-blacklisted refresh token for a new
// access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	blacklisted, err := s.cache.IsRefreshTokenBlacklisted(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if blacklisted {
		return "", ErrTokenRevoked
	}

	claims, err := jwtutil.ParseToken(s.refreshSecret, jwtutil.TokenTypeRefresh, refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	return jwtutil.GenerateToken(s.accessSecret, jwtutil.TokenTypeAccess, s.accessTTL, user.ID, user.Email)
}

// Logout blacklists the refresh token for its remaining lifetime and
// purges every cache key tied to the user's email. A refresh token
// belonging to a different subject is rejected without blacklisting.
func (s *AuthService) Logout(ctx context.Context, userID uint, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrInvalidInput
	}

	claims, err := jwtutil.ParseToken(s.refreshSecret, jwtutil.TokenTypeRefresh, refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.UserID != userID {
		return ErrTokenOwnerMismatch
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.cache.BlacklistRefreshToken(ctx, refreshToken, ttl); err != nil {
		return err
	}
	return s.cache.PurgeUserKeys(ctx, user.Email)
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.userRepo.GetByID(id)
}

func (s *AuthService) issueTokens(user *model.User) (*TokenPair, error) {
	access, err := jwtutil.GenerateToken(s.accessSecret, jwtutil.TokenTypeAccess, s.accessTTL, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := jwtutil.GenerateToken(s.refreshSecret, jwtutil.TokenTypeRefresh, s.refreshTTL, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
