package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/llmgate/internal/logger"
	"github.com/nkiryanov/llmgate/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultLiveSetSize     = 100_000
)

// Claims carried by both access and refresh tokens
type Claims struct {
	jwt.RegisteredClaims
	UserID          int64 `json:"uid"`
	IsAdministrator bool  `json:"adm"`
}

func (c Claims) Identity() models.Identity {
	return models.Identity{UserID: c.UserID, IsAdministrator: c.IsAdministrator}
}

// Token manager with sensible default
type Config struct {
	// Secrets to sign access and refresh tokens
	// Both required to be set
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Max number of live refresh tokens kept by the default live set
	LiveSetSize int
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration

	live   LiveSet
	logger logger.Logger
	now    func() time.Time
}

// Create token manager
// If live is nil in-memory live set is used
func New(cfg Config, live LiveSet, l logger.Logger) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q, only HMAC allowed", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.LiveSetSize == 0 {
		cfg.LiveSetSize = defaultLiveSetSize
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if live == nil {
		live = NewMemoryLiveSet(cfg.LiveSetSize, cfg.RefreshTTL, l)
	}

	return &TokenManager{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		live:       live,
		logger:     l,
		now:        time.Now,
	}, nil
}

func (m *TokenManager) sign(identity models.Identity, key []byte, ttl time.Duration) (models.IssuedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:          identity.UserID,
		IsAdministrator: identity.IsAdministrator,
	})

	value, err := token.SignedString(key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

func (m *TokenManager) parse(value string, key []byte) (Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(
		value,
		&claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	return claims, err
}

// Sign refresh token and make it live
func (m *TokenManager) IssueRefresh(identity models.Identity) (models.IssuedToken, error) {
	token, err := m.sign(identity, m.refreshKey, m.refreshTTL)
	if err != nil {
		return token, err
	}

	m.live.Add(token.Value)
	return token, nil
}

func (m *TokenManager) issueAccess(identity models.Identity) (models.IssuedToken, error) {
	return m.sign(identity, m.accessKey, m.accessTTL)
}

// Issue live refresh token and access token for the identity
func (m *TokenManager) IssuePair(identity models.Identity) (models.TokenPair, error) {
	refresh, err := m.IssueRefresh(identity)
	if err != nil {
		return models.TokenPair{}, err
	}

	access, err := m.issueAccess(identity)
	if err != nil {
		m.live.Remove(refresh.Value)
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Verify access token signature and expiration
// Expired tokens are an expected outcome and are not logged
func (m *TokenManager) VerifyAccess(value string) (models.Identity, bool) {
	claims, err := m.parse(value, m.accessKey)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			m.logger.Error("access token verification failed", "error", err)
		}
		return models.Identity{}, false
	}

	return claims.Identity(), true
}

// Mint new access token from a valid and live refresh token
func (m *TokenManager) RefreshAccess(refresh string) (models.IssuedToken, bool) {
	claims, err := m.parse(refresh, m.refreshKey)
	if err != nil {
		m.logger.Debug("refresh token rejected", "error", err)
		return models.IssuedToken{}, false
	}

	if !m.live.Contains(refresh) {
		m.logger.Debug("refresh token is not live", "uid", claims.UserID)
		return models.IssuedToken{}, false
	}

	access, err := m.issueAccess(claims.Identity())
	if err != nil {
		m.logger.Error("failed to issue access token", "error", err)
		return models.IssuedToken{}, false
	}

	return access, true
}

// Remove refresh token from live set
// Returns true only if token was live
func (m *TokenManager) Revoke(refresh string) bool {
	return m.live.Remove(refresh)
}
