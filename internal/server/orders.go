package server

import (
	"encoding/json"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/hireloop/paycore/internal/order/domain"
	"gorm.io/datatypes"
)

type createOrderRequest struct {
	PlanID        string          `json:"plan_id" binding:"required"`
	PaymentMethod string          `json:"payment_method"`
	Metadata      json.RawMessage `json:"metadata"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if !s.orderBurst.Allow(limiterKey(userID)) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}
	if s.purchaseLimiter.Enabled() {
		allowed, err := s.purchaseLimiter.AllowUser(c.Request.Context(), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	planID, err := snowflake.ParseString(req.PlanID)
	if err != nil {
		AbortWithError(c, newValidationError("plan_id", "invalid_plan_id", "plan_id must be a valid id"))
		return
	}

	result, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateInput{
		UserID:        userID,
		PlanID:        planID,
		PaymentMethod: req.PaymentMethod,
		Metadata:      datatypes.JSON(req.Metadata),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orders, err := s.orderSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
