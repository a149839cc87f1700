package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
)

func (s *Server) ListPlans(c *gin.Context) {
	role := plandomain.Role(strings.TrimSpace(c.Query("role")))

	plans, err := s.planSvc.List(c.Request.Context(), role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}
