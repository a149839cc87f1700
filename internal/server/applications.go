package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SubmitApplication gates a candidate action behind the daily limit and
// records it when allowed. The job-board core owns the application itself;
// this endpoint only answers whether the action may happen.
func (s *Server) SubmitApplication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	decision, err := s.usageSvc.CanPerform(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusForbidden, gin.H{
			"allowed":       false,
			"current_count": decision.CurrentCount,
			"limit":         decision.Limit,
			"message":       "daily application limit reached",
		})
		return
	}

	if err := s.usageSvc.Record(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"allowed":       true,
		"current_count": decision.CurrentCount + 1,
		"limit":         decision.Limit,
	})
}
