package handler

import "github.com/gin-gonic/gin"

const stateCookieName = "__oauth_state"

// generateState binds the OAuth round-trip to this browser: the value
// travels both in the redirect and in a cookie, and the callback only
// proceeds when they agree.
func generateState(c *gin.Context) string {
	state := randomToken()
	setFlowCookie(c, stateCookieName, state)
	return state
}

func validateState(c *gin.Context) bool {
	stateQuery := c.Query("state")
	if stateQuery == "" {
		return false
	}

	cookie, err := c.Request.Cookie(stateCookieName)
	if err != nil {
		return false
	}
	return cookie.Value == stateQuery
}
