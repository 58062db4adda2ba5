package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	recurringdomain "github.com/quorumhq/quorum/internal/recurring/domain"
)

type createRecurringChargeRequest struct {
	Target         targetRequest `json:"target"`
	Name           string        `json:"name"`
	Amount         int64         `json:"amount"`
	Frequency      string        `json:"frequency"`
	FrequencySkip  int           `json:"frequency_skip"`
	TimeToPayDays  int           `json:"time_to_pay_days"`
	NextChargeDate time.Time     `json:"next_charge_date"`
}

func (s *Server) CreateRecurringCharge(c *gin.Context) {
	var req createRecurringChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target, err := req.Target.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.recurringSvc.CreateTemplate(c.Request.Context(), recurringdomain.CreateTemplateRequest{
		Target:         target,
		Name:           strings.TrimSpace(req.Name),
		Amount:         req.Amount,
		Frequency:      recurringdomain.Frequency(strings.ToUpper(strings.TrimSpace(req.Frequency))),
		FrequencySkip:  req.FrequencySkip,
		TimeToPayDays:  req.TimeToPayDays,
		NextChargeDate: req.NextChargeDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRecurringCharge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.recurringSvc.GetTemplate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRecurringCharges(c *gin.Context) {
	resp, err := s.recurringSvc.ListTemplates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRecurringCharge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.recurringSvc.DeleteTemplate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

type materializeRecurringChargeRequest struct {
	AsOf *time.Time `json:"as_of"`
}

func (s *Server) MaterializeRecurringCharge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req materializeRecurringChargeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}

	charge, err := s.recurringSvc.MaterializeDue(c.Request.Context(), id, asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if charge == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"materialized": false}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"materialized": true, "charge": charge}})
}
