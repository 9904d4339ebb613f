package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/logger"
	"github.com/charlesng35/cmsauthz/pkg/metrics"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

// Authorizer answers single permission checks. *permissions.Manager implements it.
type Authorizer interface {
	HasPermission(ctx context.Context, userID, permission, teamID string) (bool, error)
}

// GuardOption customises a permission guard.
type GuardOption func(*guardConfig)

type guardConfig struct {
	teamParam string
}

// TeamParam scopes the check to the team id found in the named route parameter.
func TeamParam(name string) GuardOption {
	return func(cfg *guardConfig) {
		cfg.teamParam = strings.TrimSpace(name)
	}
}

type checkOutcome int

const (
	outcomeAllowed checkOutcome = iota
	outcomeDenied
	outcomeFailed
)

type guard struct {
	authz Authorizer
	cfg   guardConfig
}

func newGuard(authz Authorizer, opts []GuardOption) guard {
	g := guard{authz: authz}
	for _, opt := range opts {
		opt(&g.cfg)
	}
	return g
}

// identity returns the caller and team scope, aborting with 401 when anonymous.
func (g guard) identity(c *gin.Context, label string) (userID, teamID string, ok bool) {
	userID = c.GetString(CtxUserIDKey)
	if userID == "" {
		metrics.PermissionChecks.WithLabelValues(label, "unauthenticated").Inc()
		response.Abort(c, errors.ErrUnauthorized)
		return "", "", false
	}
	if g.cfg.teamParam != "" {
		teamID = strings.TrimSpace(c.Param(g.cfg.teamParam))
	}
	return userID, teamID, true
}

func (g guard) check(c *gin.Context, userID, permission, teamID string) checkOutcome {
	allowed, err := g.authz.HasPermission(c.Request.Context(), userID, permission, teamID)
	switch {
	case err != nil:
		metrics.PermissionChecks.WithLabelValues(permission, "error").Inc()
		logger.WithModule("authz").Error("permission check failed",
			zap.String("user_id", userID),
			zap.String("permission", permission),
			zap.String("team_id", teamID),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		return outcomeFailed
	case !allowed:
		metrics.PermissionChecks.WithLabelValues(permission, "denied").Inc()
		return outcomeDenied
	default:
		metrics.PermissionChecks.WithLabelValues(permission, "allowed").Inc()
		return outcomeAllowed
	}
}

// RequirePermission lets the request through only when the caller holds permission.
func RequirePermission(authz Authorizer, permission string, opts ...GuardOption) gin.HandlerFunc {
	g := newGuard(authz, opts)
	return func(c *gin.Context) {
		userID, teamID, ok := g.identity(c, permission)
		if !ok {
			return
		}

		switch g.check(c, userID, permission, teamID) {
		case outcomeFailed:
			response.Abort(c, errors.ErrPermissionCheckFailed)
		case outcomeDenied:
			response.Abort(c, errors.NewPermissionDenied(permission))
		default:
			c.Next()
		}
	}
}

// RequireAnyPermission checks permissions in order and proceeds on the first one held.
func RequireAnyPermission(authz Authorizer, permissions []string, opts ...GuardOption) gin.HandlerFunc {
	g := newGuard(authz, opts)
	names := append([]string(nil), permissions...)
	return func(c *gin.Context) {
		userID, teamID, ok := g.identity(c, strings.Join(names, "|"))
		if !ok {
			return
		}

		for _, permission := range names {
			switch g.check(c, userID, permission, teamID) {
			case outcomeFailed:
				response.Abort(c, errors.ErrPermissionCheckFailed)
				return
			case outcomeAllowed:
				c.Next()
				return
			}
		}
		response.Abort(c, errors.NewPermissionDeniedAny(names))
	}
}

// RequirePermissions requires every permission, stopping at the first one missing.
func RequirePermissions(authz Authorizer, permissions []string, opts ...GuardOption) gin.HandlerFunc {
	g := newGuard(authz, opts)
	names := append([]string(nil), permissions...)
	return func(c *gin.Context) {
		userID, teamID, ok := g.identity(c, strings.Join(names, "&"))
		if !ok {
			return
		}

		for _, permission := range names {
			switch g.check(c, userID, permission, teamID) {
			case outcomeFailed:
				response.Abort(c, errors.ErrPermissionCheckFailed)
				return
			case outcomeDenied:
				response.Abort(c, errors.NewPermissionDenied(permission))
				return
			}
		}
		c.Next()
	}
}

// RequireAuth only asserts that a caller identity is present.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxUserIDKey) == "" {
			response.Abort(c, errors.ErrUnauthorized)
			return
		}
		c.Next()
	}
}
