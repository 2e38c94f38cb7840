package handler

import (
	"errors"
	"net/http"

	"medauth-service/internal/auth/credentials"
	"medauth-service/internal/auth/provider"
	"medauth-service/internal/auth/resolver"
	"medauth-service/internal/biometric"
	"medauth-service/internal/flow"
	"medauth-service/internal/logger"
	"medauth-service/internal/session"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	orch      *flow.Orchestrator
	providers *provider.Registry
	resolver  resolver.Resolver
	accounts  *credentials.Service
	matcher   biometric.Matcher
}

func NewHandler(
	orch *flow.Orchestrator,
	registry *provider.Registry,
	resolver resolver.Resolver,
	accounts *credentials.Service,
	matcher biometric.Matcher,
) *Handler {
	return &Handler{
		orch:      orch,
		providers: registry,
		resolver:  resolver,
		accounts:  accounts,
		matcher:   matcher,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/role", h.SelectRole)
	r.POST("/credentials", h.Credentials)
	r.GET("/challenge", h.Challenge)
	r.POST("/capture/open", h.OpenCapture)
	r.POST("/capture", h.SubmitCapture)
	r.POST("/totp/setup", h.SetupTOTP)
	r.POST("/totp/verify", h.VerifyTOTP)
	r.POST("/logout", h.Logout)
	r.POST("/staff/signup", h.StaffSignup)
	r.POST("/patient/signup", h.PatientSignup)

	r.GET("/oauth/login/:provider", h.oauthLogin)
	r.GET("/oauth/callback/:provider", h.oauthCallback)

	for _, route := range r.Routes() {
		logger.Info("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

// sessionID resolves the session from an explicit field, the query
// string, or the session cookie, in that order.
func (h *Handler) sessionID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if q := c.Query("session_id"); q != "" {
		return q
	}
	if cookie, err := c.Request.Cookie(session.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func sessionBody(s *session.Session) gin.H {
	return gin.H{
		"session_id": s.SessionID,
		"state":      string(s.State),
		"expires_at": s.ExpiresAt,
	}
}

// respondErr maps flow sentinels to stable error codes. Clients see the
// code and the current state, never internal diagnostics.
func respondErr(c *gin.Context, s *session.Session, err error) {
	status, code := http.StatusInternalServerError, "internal_error"

	switch {
	case errors.Is(err, flow.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, flow.ErrWindowConflict):
		status, code = http.StatusConflict, "window_conflict"
	case errors.Is(err, flow.ErrWindowExpired):
		status, code = http.StatusGone, "window_expired"
	case errors.Is(err, flow.ErrCredentialsInvalid):
		status, code = http.StatusUnauthorized, "credentials_invalid"
	case errors.Is(err, flow.ErrRetryBudgetExceeded):
		status, code = http.StatusForbidden, "retry_budget_exceeded"
	case errors.Is(err, flow.ErrSessionTerminated):
		status, code = http.StatusForbidden, "session_terminated"
	case errors.Is(err, flow.ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, flow.ErrSessionBusy):
		status, code = http.StatusServiceUnavailable, "session_busy"
	case errors.Is(err, flow.ErrAlreadyEnrolled):
		status, code = http.StatusConflict, "already_enrolled"
	case errors.Is(err, flow.ErrNotEnrolled):
		status, code = http.StatusConflict, "not_enrolled"
	case errors.Is(err, flow.ErrAdapterUnavailable):
		status, code = http.StatusBadGateway, "adapter_unavailable"
	}

	body := gin.H{"error": code}
	if s != nil {
		body["session_id"] = s.SessionID
		body["state"] = string(s.State)
	}
	c.JSON(status, body)
}
