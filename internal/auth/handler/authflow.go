package handler

import (
	"net/http"

	"medauth-service/internal/auth"
	"medauth-service/internal/capture"
	"medauth-service/internal/session"

	"github.com/gin-gonic/gin"
)

type roleRequest struct {
	Role string `json:"role"`
}

// SelectRole creates the session and issues its cookie. The cookie only
// carries the opaque id; the browser-based OAuth path depends on it.
func (h *Handler) SelectRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	role := auth.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
		return
	}

	s, err := h.orch.StartSession(c.Request.Context(), role)
	if err != nil {
		respondErr(c, nil, err)
		return
	}

	session.SetCookie(c.Writer, s.SessionID, s.ExpiresAt, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusCreated, sessionBody(s))
}

type credentialsRequest struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *Handler) Credentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s, err := h.orch.SubmitCredentials(
		c.Request.Context(),
		h.sessionID(c, req.SessionID),
		req.Email,
		req.Password,
	)
	if err != nil {
		respondErr(c, s, err)
		return
	}

	c.JSON(http.StatusOK, sessionBody(s))
}

func (h *Handler) Challenge(c *gin.Context) {
	s, ch, err := h.orch.IssueChallenge(c.Request.Context(), h.sessionID(c, ""))
	if err != nil {
		respondErr(c, s, err)
		return
	}

	body := sessionBody(s)
	body["phrase"] = ch.Phrase
	body["phrase_expires_at"] = ch.ExpiresAt
	c.JSON(http.StatusOK, body)
}

type openCaptureRequest struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
}

func (h *Handler) OpenCapture(c *gin.Context) {
	var req openCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	kind := capture.Kind(req.Kind)
	if kind == "" {
		kind = capture.KindFaceVoiceSync
	}

	s, w, err := h.orch.OpenCapture(c.Request.Context(), h.sessionID(c, req.SessionID), kind)
	if err != nil {
		respondErr(c, s, err)
		return
	}

	body := sessionBody(s)
	body["window_id"] = w.WindowID
	body["opened_at"] = w.OpenedAt
	body["duration_seconds"] = int(w.Duration.Seconds())
	c.JSON(http.StatusCreated, body)
}

type submitCaptureRequest struct {
	SessionID string `json:"session_id"`
	WindowID  string `json:"window_id"`
	MediaRef  string `json:"media_ref"`
}

func (h *Handler) SubmitCapture(c *gin.Context) {
	var req submitCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WindowID == "" || req.MediaRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s, res, err := h.orch.SubmitCapture(
		c.Request.Context(),
		h.sessionID(c, req.SessionID),
		req.WindowID,
		req.MediaRef,
	)
	if err != nil {
		respondErr(c, s, err)
		return
	}

	body := sessionBody(s)
	if res != nil {
		body["matched"] = res.Matched
		body["liveness_ok"] = res.LivenessOk
	}
	c.JSON(http.StatusOK, body)
}

type totpSetupRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) SetupTOTP(c *gin.Context) {
	var req totpSetupRequest
	_ = c.ShouldBindJSON(&req)

	s, secret, err := h.orch.SetupTOTP(c.Request.Context(), h.sessionID(c, req.SessionID))
	if err != nil {
		respondErr(c, s, err)
		return
	}

	body := sessionBody(s)
	body["secret"] = secret.Secret
	body["otpauth_url"] = secret.URL
	c.JSON(http.StatusCreated, body)
}

type totpVerifyRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

func (h *Handler) VerifyTOTP(c *gin.Context) {
	var req totpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s, err := h.orch.VerifyTOTP(c.Request.Context(), h.sessionID(c, req.SessionID), req.Code)
	if err != nil {
		respondErr(c, s, err)
		return
	}

	c.JSON(http.StatusOK, sessionBody(s))
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	sid := h.sessionID(c, req.SessionID)
	if sid != "" {
		if err := h.orch.Logout(c.Request.Context(), sid); err != nil {
			respondErr(c, nil, err)
			return
		}
	}

	session.ClearCookie(c.Writer, session.CookieOptions{
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// idempotent response
	c.Status(http.StatusNoContent)
}
