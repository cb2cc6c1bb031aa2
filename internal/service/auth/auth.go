package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/models"
	"github.com/nkiryanov/llmgate/internal/repository"
)

const (
	defaultAccessCookieName  = "accesstoken"
	defaultRefreshCookieName = "refreshtoken"
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type tokenManager interface {
	IssuePair(identity models.Identity) (models.TokenPair, error)
	VerifyAccess(token string) (models.Identity, bool)
	RefreshAccess(refresh string) (models.IssuedToken, bool)
	Revoke(refresh string) bool
}

type Config struct {
	// Cookie names to store tokens
	AccessCookieName  string
	RefreshCookieName string

	// Header to read and return access token
	AccessHeaderName string
	AccessAuthScheme string

	CookieSecure   bool
	CookieSameSite http.SameSite

	// Hasher to use during user registration or login process
	Hasher PasswordHasher
}

// Auth service
type AuthService struct {
	accessCookieName  string
	refreshCookieName string
	accessHeaderName  string
	accessAuthScheme  string
	cookieSecure      bool
	cookieSameSite    http.SameSite

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Hash compared when user not found so login takes the same time
	dummyHash string

	tokens tokenManager
	users  repository.UserRepo
}

func NewService(cfg Config, tokens tokenManager, users repository.UserRepo) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}
	if cfg.CookieSameSite == 0 {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if cfg.CookieSameSite == http.SameSiteNoneMode && !cfg.CookieSecure {
		return nil, errors.New("SameSite=None requires Secure cookie")
	}

	dummy, err := cfg.Hasher.Hash("dummy-password")
	if err != nil {
		return nil, fmt.Errorf("hasher is broken. Err: %w", err)
	}

	return &AuthService{
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		cookieSecure:      cfg.CookieSecure,
		cookieSameSite:    cfg.CookieSameSite,
		hasher:            cfg.Hasher,
		dummyHash:         dummy,
		tokens:            tokens,
		users:             users,
	}, nil
}

// Register user and return raw API key
// Has to return apperrors.ErrUserAlreadyExists if user already exists
func (s *AuthService) Register(ctx context.Context, email string, password string) (models.User, string, error) {
	return s.createUser(ctx, email, password, false)
}

func (s *AuthService) createUser(ctx context.Context, email string, password string, admin bool) (models.User, string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, "", fmt.Errorf("can't use this as password, error=%w", err)
	}

	key := NewAPIKey()
	user, err := s.users.CreateUser(ctx, repository.CreateUserParams{
		Email:           email,
		PasswordHash:    hash,
		APIKeyHash:      HashAPIKey(key),
		IsAdministrator: admin,
	})
	if err != nil {
		return models.User{}, "", err
	}

	return user, key, nil
}

// Create administrator if user with the email not exists yet
// Returns true if administrator was created
func (s *AuthService) EnsureAdmin(ctx context.Context, email string, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return false, errors.New("admin email and password are required")
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return false, err
	}

	_, _, err = s.createUser(ctx, email, password, true)
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return false, nil
	}
	return err == nil, err
}

// Login user with email and password
// Has to return apperrors.ErrInvalidCredentials if user not found or password mismatch
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.TokenPair{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Mint new access token from live refresh token
func (s *AuthService) Refresh(refresh string) (models.IssuedToken, error) {
	access, ok := s.tokens.RefreshAccess(refresh)
	if !ok {
		return access, apperrors.ErrUnauthenticated
	}
	return access, nil
}

// Revoke refresh token; true if it was live
func (s *AuthService) Logout(refresh string) bool {
	if refresh == "" {
		return false
	}
	return s.tokens.Revoke(refresh)
}

// Replace user API key and return the new raw value
func (s *AuthService) RotateAPIKey(ctx context.Context, userID int64) (string, error) {
	key := NewAPIKey()
	if err := s.users.SetAPIKeyHash(ctx, userID, HashAPIKey(key)); err != nil {
		return "", err
	}
	return key, nil
}

// Authenticate request by access token
// Token is read from cookie first, then from header
func (s *AuthService) Authenticate(r *http.Request) (models.Identity, bool) {
	token := s.accessFromRequest(r)
	if token == "" {
		return models.Identity{}, false
	}
	return s.tokens.VerifyAccess(token)
}

func (s *AuthService) accessFromRequest(r *http.Request) string {
	if c, err := r.Cookie(s.accessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return BearerToken(r, s.accessHeaderName, s.accessAuthScheme)
}

// Extract token from header in "<scheme> <token>" form
func BearerToken(r *http.Request, header string, scheme string) string {
	value := r.Header.Get(header)
	prefix, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(prefix, scheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// Get refresh token from request cookie
func (s *AuthService) GetRefresh(r *http.Request) (string, error) {
	c, err := r.Cookie(s.refreshCookieName)
	if err != nil || c.Value == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return c.Value, nil
}

// Set auth tokens (access, refresh) to response
func (s *AuthService) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	s.SetAccess(w, pair.Access)
	http.SetCookie(w, s.cookie(s.refreshCookieName, pair.Refresh))
}

// Set access token cookie and header
func (s *AuthService) SetAccess(w http.ResponseWriter, access models.IssuedToken) {
	http.SetCookie(w, s.cookie(s.accessCookieName, access))
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+access.Value)
}

// Expire both token cookies
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{s.accessCookieName, s.refreshCookieName} {
		c := s.cookie(name, models.IssuedToken{})
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (s *AuthService) cookie(name string, token models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: s.cookieSameSite,
	}
}

// Parse SameSite cookie mode from config value
func ParseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown SameSite mode %q", value)
	}
}
