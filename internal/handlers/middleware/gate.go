package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/handlers/identity"
	"github.com/nkiryanov/llmgate/internal/handlers/render"
	"github.com/nkiryanov/llmgate/internal/logger"
	"github.com/nkiryanov/llmgate/internal/models"
	"github.com/nkiryanov/llmgate/internal/service/auth"
)

const (
	TierSession = "session"
	TierAdmin   = "admin"
	TierAPIKey  = "apikey"
)

type authenticator interface {
	// Report caller identity from access token in request
	Authenticate(r *http.Request) (models.Identity, bool)
}

type userLookup interface {
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByAPIKeyHash(ctx context.Context, hash string) (models.User, error)
}

type usageMeter interface {
	// Must not block
	RecordHit(method string, endpoint string, userID int64)
}

type rejectCounter interface {
	GateRejected(tier string, reason string)
}

type GateOption func(*Gate)

func WithRejectCounter(c rejectCounter) GateOption {
	return func(g *Gate) { g.rejects = c }
}

func WithLogger(l logger.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// Gate guards routes by authorization tier and meters authorized requests
type Gate struct {
	auth    authenticator
	users   userLookup
	meter   usageMeter
	rejects rejectCounter
	logger  logger.Logger
}

func NewGate(a authenticator, users userLookup, meter usageMeter, opts ...GateOption) *Gate {
	g := &Gate{
		auth:    a,
		users:   users,
		meter:   meter,
		rejects: nopRejects{},
		logger:  logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Session requires valid access token
func (g *Gate) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := g.auth.Authenticate(r)
		if !ok {
			g.reject(w, TierSession, "unauthenticated", "Unauthorized", http.StatusUnauthorized)
			return
		}

		g.pass(w, r.WithContext(identity.New(r.Context(), id)), next, id)
	})
}

// Admin requires valid access token of a user that is administrator right now
// Claims in the token are not trusted for this, the user is loaded from storage
func (g *Gate) Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := g.auth.Authenticate(r)
		if !ok {
			g.reject(w, TierAdmin, "unauthenticated", "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := g.users.GetUserByID(r.Context(), id.UserID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			g.reject(w, TierAdmin, "unknown_user", "Unauthorized", http.StatusUnauthorized)
			return
		case err != nil:
			g.logger.Error("Failed to load user", "error", err, "user_id", id.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		case !user.IsAdministrator:
			g.reject(w, TierAdmin, "forbidden", "Forbidden", http.StatusForbidden)
			return
		}

		id = user.Identity()
		g.pass(w, r.WithContext(identity.New(r.Context(), id)), next, id)
	})
}

// APIKey requires "Authorization: Bearer <api key>" of existing user
func (g *Gate) APIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := auth.BearerToken(r, "Authorization", "Bearer")
		if key == "" {
			g.reject(w, TierAPIKey, "missing_key", "API key required", http.StatusUnauthorized)
			return
		}

		user, err := g.users.GetUserByAPIKeyHash(r.Context(), auth.HashAPIKey(key))
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			g.reject(w, TierAPIKey, "unknown_key", "Invalid API key", http.StatusUnauthorized)
			return
		case err != nil:
			g.logger.Error("Failed to lookup API key", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		id := user.Identity()
		ctx := identity.WithAPIKey(identity.New(r.Context(), id), key)
		g.pass(w, r.WithContext(ctx), next, id)
	})
}

func (g *Gate) pass(w http.ResponseWriter, r *http.Request, next http.Handler, id models.Identity) {
	g.meter.RecordHit(r.Method, endpoint(r), id.UserID)
	next.ServeHTTP(w, r)
}

func (g *Gate) reject(w http.ResponseWriter, tier string, reason string, message string, code int) {
	g.rejects.GateRejected(tier, reason)
	render.ServiceError(w, message, code)
}

// Route template without method, e.g. /prompts/{userid}
// Falls back to the path when request was not routed by ServeMux
func endpoint(r *http.Request) string {
	if r.Pattern == "" {
		return r.URL.Path
	}
	pattern := r.Pattern
	if _, path, found := strings.Cut(pattern, " "); found {
		pattern = path
	}
	return pattern
}

type nopRejects struct{}

func (nopRejects) GateRejected(string, string) {}
