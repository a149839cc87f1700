package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetEntitlements(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	snapshot, err := s.entitlementSvc.Snapshot(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.usageSvc.CanPerform(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": snapshot.Subscription,
		"plan":         snapshot.Plan,
		"quota":        snapshot.Quota,
		"usage": gin.H{
			"today_count": decision.CurrentCount,
			"daily_limit": decision.Limit,
		},
	})
}
