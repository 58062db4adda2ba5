package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
)

type recordPaymentRequest struct {
	PayerID     string     `json:"payer_id"`
	Amount      int64      `json:"amount"`
	PaymentDate *time.Time `json:"payment_date"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payerID, err := snowflake.ParseString(strings.TrimSpace(req.PayerID))
	if err != nil || payerID == 0 {
		AbortWithError(c, newValidationError("payer_id", "invalid_id", "invalid payer id"))
		return
	}

	domainReq := ledgerdomain.RecordPaymentRequest{
		PayerID: payerID,
		Amount:  req.Amount,
	}
	if req.PaymentDate != nil {
		domainReq.PaymentDate = *req.PaymentDate
	}

	resp, err := s.ledgerSvc.RecordPayment(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		PayerID string `form:"payer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := ledgerdomain.ListPaymentsFilter{}
	if raw := strings.TrimSpace(query.PayerID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, newValidationError("payer_id", "invalid_id", "invalid payer id"))
			return
		}
		filter.PayerID = id
	}

	resp, err := s.ledgerSvc.ListPayments(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.ledgerSvc.DeletePayment(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) ListPaymentTransactions(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.PaymentTransactions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type allocatePaymentRequest struct {
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount"`
}

func (s *Server) AllocatePayment(c *gin.Context) {
	paymentID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req allocatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	chargeID, err := snowflake.ParseString(strings.TrimSpace(req.ChargeID))
	if err != nil || chargeID == 0 {
		AbortWithError(c, newValidationError("charge_id", "invalid_id", "invalid charge id"))
		return
	}

	resp, err := s.ledgerSvc.Allocate(c.Request.Context(), ledgerdomain.AllocateRequest{
		PaymentID: paymentID,
		ChargeID:  chargeID,
		Amount:    req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
