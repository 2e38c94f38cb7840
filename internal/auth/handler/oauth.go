package handler

import (
	"net/http"

	"medauth-service/internal/logger"

	"github.com/gin-gonic/gin"
)

// oauthLogin starts the OIDC sign-in path. It satisfies the credentials
// step of an existing session, so the session cookie from /role must
// already be present.
func (h *Handler) oauthLogin(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if h.sessionID(c, "") == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "session_not_found",
		})
		return
	}

	state := generateState(c)
	_, codeChallenge := generatePKCE(c)

	authURL := p.AuthCodeURL(state, codeChallenge)
	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) oauthCallback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if !validateState(c) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid state",
		})
		return
	}

	sessionID := h.sessionID(c, "")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "session_not_found",
		})
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		// count it as a failed credentials attempt
		s, ferr := h.orch.AcceptIdentity(c.Request.Context(), sessionID, "")
		respondErr(c, s, ferr)
		return
	}

	code := c.Query("code")
	if code == "" {
		logger.Error("oidc callback missing code and error", nil)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	codeVerifier := getPKCEVerifier(c)
	if codeVerifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing pkce verifier",
		})
		return
	}

	identity, err := p.ExchangeCode(
		c.Request.Context(),
		code,
		codeVerifier,
	)
	if err != nil {
		s, ferr := h.orch.AcceptIdentity(c.Request.Context(), sessionID, "")
		respondErr(c, s, ferr)
		return
	}

	subjectID, err := h.resolver.Resolve(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to resolve subject",
		})
		return
	}

	s, err := h.orch.AcceptIdentity(c.Request.Context(), sessionID, subjectID)
	if err != nil {
		respondErr(c, s, err)
		return
	}

	c.JSON(http.StatusOK, sessionBody(s))
}
