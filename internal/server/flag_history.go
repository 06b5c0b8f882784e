package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/pkg/db/pagination"
)

const HeaderNextPageToken = "X-Next-Page-Token"

type listFlagHistoryQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// ListFlagHistory returns change log entries newest first. The body is a
// bare array; the next page token, when there is one, is sent as a header.
func (s *Server) ListFlagHistory(c *gin.Context) {
	var query listFlagHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if query.PageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must not be negative"))
		return
	}

	resp, err := s.flagSvc.ListHistory(c.Request.Context(), flagdomain.HistoryRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		FeatureKey:  featureKeyParam(c),
		Environment: environmentParam(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if resp.NextPageToken != "" {
		c.Header(HeaderNextPageToken, resp.NextPageToken)
	}
	entries := resp.Entries
	if entries == nil {
		entries = []auditdomain.EntryResponse{}
	}
	c.JSON(http.StatusOK, entries)
}
