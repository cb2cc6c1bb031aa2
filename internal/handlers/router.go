package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nkiryanov/llmgate/internal/handlers/middleware"
	"github.com/nkiryanov/llmgate/internal/logger"
	"github.com/nkiryanov/llmgate/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Deps struct {
	Auth    authService
	Users   userService
	Prompts promptService
	LLM     llmClient

	// Identity lookups for admin and API key tiers
	UserLookup userLookup
	Meter      usageMeter
	Metrics    routerMetrics

	AllowedOrigins []string
	Logger         logger.Logger
}

// @title llmgate API
// @version 1.0
// @description Accounts, prompt storage and metered access to LLM service.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func NewRouter(d Deps) http.Handler {
	l := d.Logger
	gate := middleware.NewGate(d.Auth, d.UserLookup, d.Meter,
		middleware.WithRejectCounter(d.Metrics),
		middleware.WithLogger(l),
	)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/register", handleRegister(d.Auth, l))
	mux.Handle("POST /auth/login", handleLogin(d.Auth, l))
	mux.Handle("POST /auth/refresh", handleTokenRefresh(d.Auth))
	mux.Handle("POST /auth/logout", gate.Session(handleLogout(d.Auth)))
	mux.Handle("POST /auth/new-key", gate.Session(handleNewKey(d.Auth, l)))
	mux.Handle("GET /auth/me", gate.Session(handleMe(d.Users, l)))
	mux.Handle("PATCH /auth/username", gate.Session(handleChangeUsername(d.Users, l)))

	mux.Handle("GET /prompts", gate.Session(handleListPrompts(d.Prompts, l)))
	mux.Handle("GET /prompts/{userid}", gate.Admin(handleListUserPrompts(d.Prompts, l)))
	mux.Handle("POST /prompts/{userid}", gate.Session(handleCreatePrompt(d.Prompts, l)))
	mux.Handle("GET /prompts/{userid}/{promptid}", gate.Session(handleGetPrompt(d.Prompts, l)))
	mux.Handle("PUT /prompts/{userid}/{promptid}", gate.Session(handleUpdatePrompt(d.Prompts, l)))
	mux.Handle("DELETE /prompts/{userid}/{promptid}", gate.Session(handleDeletePrompt(d.Prompts, l)))

	mux.Handle("GET /admin/users", gate.Admin(handleListUsers(d.Users, l)))
	mux.Handle("GET /admin/users/{email}", gate.Admin(handleGetUser(d.Users, l)))
	mux.Handle("GET /admin/metrics", gate.Admin(handleListMetrics(d.Users, l)))

	mux.Handle("POST /api/ask", gate.APIKey(handleAsk(d.LLM, d.Users, l)))

	mux.Handle("GET /metrics", d.Metrics.Handler())
	mux.Handle("GET /openapi.json", handleOpenAPI())
	mux.Handle("GET /healthz", handleHealth())

	return chain(mux,
		middleware.LoggerMiddleware(l),
		middleware.MetricsMiddleware(d.Metrics),
		middleware.CORSMiddleware(d.AllowedOrigins),
	)
}

type authService interface {
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Register(ctx context.Context, email string, password string) (models.User, string, error)

	// Has to return apperrors.ErrInvalidCredentials on unknown email or wrong password
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Mint access token from live refresh token
	Refresh(refresh string) (models.IssuedToken, error)

	// Revoke refresh token, report whether it was live
	Logout(refresh string) bool

	RotateAPIKey(ctx context.Context, userID int64) (string, error)

	Authenticate(r *http.Request) (models.Identity, bool)
	GetRefresh(r *http.Request) (string, error)
	SetTokens(w http.ResponseWriter, pair models.TokenPair)
	SetAccess(w http.ResponseWriter, access models.IssuedToken)
	ClearTokens(w http.ResponseWriter)
}

type userService interface {
	GetUser(ctx context.Context, userID int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUsername(ctx context.Context, userID int64, username string) error

	// Count one LLM request for owner of raw API key
	IncrementUsage(ctx context.Context, key string) (int64, error)

	ListMetrics(ctx context.Context) ([]models.EndpointMetric, error)
}

type promptService interface {
	List(ctx context.Context, who models.Identity) ([]models.Prompt, error)
	ListOf(ctx context.Context, who models.Identity, ownerID int64) ([]models.Prompt, error)
	Get(ctx context.Context, who models.Identity, ownerID int64, promptID int64) (models.Prompt, error)
	Create(ctx context.Context, who models.Identity, ownerID int64, title string, prompt string) (models.Prompt, error)
	Update(ctx context.Context, who models.Identity, ownerID int64, promptID int64, title string, prompt string) (models.Prompt, error)
	Delete(ctx context.Context, who models.Identity, ownerID int64, promptID int64) error
}

type llmClient interface {
	// Has to return apperrors.ErrLLMUnavailable when upstream fails
	Generate(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, error)
}

type userLookup interface {
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByAPIKeyHash(ctx context.Context, hash string) (models.User, error)
}

type usageMeter interface {
	RecordHit(method string, endpoint string, userID int64)
}

type routerMetrics interface {
	ObserveRequest(method string, route string, status int, duration time.Duration)
	GateRejected(tier string, reason string)
	Handler() http.Handler
}
