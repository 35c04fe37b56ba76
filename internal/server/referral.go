package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
)

func (s *Server) CreateReferralLink(c *gin.Context) {
	var req referraldomain.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.referralSvc.CreateLink(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code": resp.Code,
		"link": resp.Link,
	})
}

type validateCodeRequest struct {
	Code   string `json:"code" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) ValidateReferralCode(c *gin.Context) {
	var req validateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := s.referralSvc.Redeem(c.Request.Context(), req.Code, req.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Referral code validated and used successfully",
	})
}

func (s *Server) ProcessTransactionEvent(c *gin.Context) {
	var event referraldomain.TransactionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.referralSvc.ProcessTransactionEvent(c.Request.Context(), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Transaction event processed successfully",
		"outcome": result.Outcome,
	})
}

func (s *Server) GetReferralHistory(c *gin.Context) {
	referrerID := strings.TrimSpace(c.Query("referrerId"))
	if referrerID == "" {
		AbortWithError(c, newValidationError("referrerId", "required", "referrerId is required"))
		return
	}

	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 10)

	resp, err := s.referralSvc.GetHistory(c.Request.Context(), referraldomain.GetHistoryRequest{
		ReferrerID: referrerID,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func parseIntQuery(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}
