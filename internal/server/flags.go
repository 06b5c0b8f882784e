package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
)

type createFlagRequest struct {
	FeatureKey     string `json:"featureKey"`
	Environment    string `json:"environment"`
	Enabled        bool   `json:"enabled"`
	RolloutPercent *int   `json:"rolloutPercent"`
}

type updateFlagRequest struct {
	Enabled        *bool `json:"enabled"`
	RolloutPercent *int  `json:"rolloutPercent"`
}

type addTargetRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) ListFlags(c *gin.Context) {
	flags, err := s.flagSvc.List(c.Request.Context(), environmentParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, flags)
}

func (s *Server) GetFlag(c *gin.Context) {
	flag, err := s.flagSvc.Get(c.Request.Context(), featureKeyParam(c), environmentParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, flag)
}

func (s *Server) CreateFlag(c *gin.Context) {
	var req createFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.RolloutPercent == nil {
		AbortWithError(c, newValidationError("rolloutPercent", "required", "rolloutPercent is required"))
		return
	}

	flag, err := s.flagSvc.Create(c.Request.Context(), flagdomain.CreateRequest{
		FeatureKey:     strings.TrimSpace(req.FeatureKey),
		Environment:    flagdomain.Environment(strings.TrimSpace(req.Environment)),
		Enabled:        req.Enabled,
		RolloutPercent: *req.RolloutPercent,
	}, changedBy(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, flag)
}

// UpdateFlag applies a partial update; omitted fields keep their value.
func (s *Server) UpdateFlag(c *gin.Context) {
	var req updateFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	flag, err := s.flagSvc.Update(c.Request.Context(), flagdomain.UpdateRequest{
		FeatureKey:     featureKeyParam(c),
		Environment:    environmentParam(c),
		Enabled:        req.Enabled,
		RolloutPercent: req.RolloutPercent,
	}, changedBy(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, flag)
}

func (s *Server) ListTargets(c *gin.Context) {
	targets, err := s.flagSvc.ListTargets(c.Request.Context(), featureKeyParam(c), environmentParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, targets)
}

func (s *Server) AddTarget(c *gin.Context) {
	var req addTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target, err := s.flagSvc.AddTarget(c.Request.Context(), flagdomain.TargetRequest{
		FeatureKey:  featureKeyParam(c),
		Environment: environmentParam(c),
		UserID:      strings.TrimSpace(req.UserID),
	}, changedBy(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, target)
}

func (s *Server) RemoveTarget(c *gin.Context) {
	err := s.flagSvc.RemoveTarget(c.Request.Context(), flagdomain.TargetRequest{
		FeatureKey:  featureKeyParam(c),
		Environment: environmentParam(c),
		UserID:      strings.TrimSpace(c.Param("userId")),
	}, changedBy(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
