package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
)

type targetRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (t targetRequest) toDomain() (ledgerdomain.Target, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(t.ID))
	if err != nil || id == 0 {
		return ledgerdomain.Target{}, newValidationError("target.id", "invalid_id", "invalid target id")
	}
	target := ledgerdomain.Target{
		Kind: ledgerdomain.TargetKind(strings.TrimSpace(t.Kind)),
		ID:   id,
	}
	if err := target.Validate(); err != nil {
		return ledgerdomain.Target{}, err
	}
	return target, nil
}

type createChargeRequest struct {
	Target  targetRequest `json:"target"`
	Name    string        `json:"name"`
	Amount  int64         `json:"amount"`
	DueDate time.Time     `json:"due_date"`
}

func (s *Server) CreateCharge(c *gin.Context) {
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target, err := req.Target.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.CreateCharge(c.Request.Context(), ledgerdomain.CreateChargeRequest{
		Target:  target,
		Name:    strings.TrimSpace(req.Name),
		Amount:  req.Amount,
		DueDate: req.DueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCharge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.GetCharge(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCharges(c *gin.Context) {
	var query struct {
		TargetKind string `form:"target_kind"`
		TargetID   string `form:"target_id"`
		DueBefore  string `form:"due_before"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := ledgerdomain.ListChargesFilter{
		TargetKind: ledgerdomain.TargetKind(strings.TrimSpace(query.TargetKind)),
	}
	if raw := strings.TrimSpace(query.TargetID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, newValidationError("target_id", "invalid_id", "invalid target id"))
			return
		}
		filter.TargetID = id
	}
	if raw := strings.TrimSpace(query.DueBefore); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("due_before", "invalid_due_before", "invalid due_before"))
			return
		}
		filter.DueBefore = &t
	}

	resp, err := s.ledgerSvc.ListCharges(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteCharge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.ledgerSvc.DeleteCharge(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) ListChargeTransactions(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.ChargeTransactions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
