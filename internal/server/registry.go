package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	registrydomain "github.com/quorumhq/quorum/internal/registry/domain"
)

type createCommunityRequest struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func (s *Server) CreateCommunity(c *gin.Context) {
	var req createCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.registrySvc.CreateCommunity(c.Request.Context(), registrydomain.CreateCommunityRequest{
		Name: strings.TrimSpace(req.Name),
		Tags: req.Tags,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCommunity(c *gin.Context) {
	id, err := parseIDParam(c, "community_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.registrySvc.GetCommunity(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createResidenceRequest struct {
	UnitNo string `json:"unit_no"`
}

func (s *Server) CreateResidence(c *gin.Context) {
	var req createResidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.registrySvc.CreateResidence(c.Request.Context(), registrydomain.CreateResidenceRequest{
		UnitNo: strings.TrimSpace(req.UnitNo),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListResidences(c *gin.Context) {
	resp, err := s.registrySvc.ListResidences(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createOccupantRequest struct {
	Name        string `json:"name"`
	ResidenceID string `json:"residence_id"`
}

func (s *Server) CreateOccupant(c *gin.Context) {
	var req createOccupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var residenceID *snowflake.ID
	if raw := strings.TrimSpace(req.ResidenceID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, newValidationError("residence_id", "invalid_id", "invalid residence id"))
			return
		}
		residenceID = &id
	}

	resp, err := s.registrySvc.CreateOccupant(c.Request.Context(), registrydomain.CreateOccupantRequest{
		Name:        strings.TrimSpace(req.Name),
		ResidenceID: residenceID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOccupants(c *gin.Context) {
	resp, err := s.registrySvc.ListOccupants(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, newValidationError(name, "invalid_id", "invalid id")
	}
	return id, nil
}
