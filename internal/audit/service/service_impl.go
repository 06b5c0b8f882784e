package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	"github.com/smallbiznis/featureflags/internal/auditcontext"
	"github.com/smallbiznis/featureflags/internal/clock"
	obscontext "github.com/smallbiznis/featureflags/internal/observability/context"
	"github.com/smallbiznis/featureflags/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, req auditdomain.AppendRequest) (*auditdomain.FlagChangeLog, error) {
	if !req.ChangeType.Valid() {
		return nil, auditdomain.ErrInvalidChangeType
	}
	featureKey := strings.TrimSpace(req.FeatureKey)
	if featureKey == "" {
		return nil, auditdomain.ErrInvalidFeatureKey
	}
	environment := strings.TrimSpace(req.Environment)
	if environment == "" {
		return nil, auditdomain.ErrInvalidEnvironment
	}
	if tx == nil {
		tx = s.db
	}

	entry := auditdomain.FlagChangeLog{
		ID:          s.genID.Generate(),
		FeatureKey:  featureKey,
		Environment: environment,
		ChangeType:  req.ChangeType,
		ChangedBy:   s.resolveChangedBy(ctx, req.ChangedBy),
		Details:     req.Details,
		Metadata:    requestMetadata(ctx),
		CreatedAt:   s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		s.log.Warn("failed to append flag change log",
			zap.String("feature_key", featureKey),
			zap.String("change_type", string(req.ChangeType)),
			zap.Error(err),
		)
		return nil, err
	}
	return &entry, nil
}

func (s *Service) ListHistory(ctx context.Context, req auditdomain.ListHistoryRequest) (*auditdomain.ListHistoryResponse, error) {
	featureKey := strings.TrimSpace(req.FeatureKey)
	if featureKey == "" {
		return nil, auditdomain.ErrInvalidFeatureKey
	}
	environment := strings.TrimSpace(req.Environment)
	if environment == "" {
		return nil, auditdomain.ErrInvalidEnvironment
	}

	filter := auditdomain.ListFilter{
		FeatureKey:  featureKey,
		Environment: environment,
	}

	paged := req.Pagination.Enabled()
	limit := req.Pagination.Limit()
	if paged {
		if token := strings.TrimSpace(req.PageToken); token != "" {
			cursor, err := decodeCursor(token)
			if err != nil {
				return nil, err
			}
			filter.After = cursor
		}
		filter.Limit = limit + 1
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := &auditdomain.ListHistoryResponse{}
	if paged {
		var info *pagination.PageInfo
		items, info, err = pagination.BuildCursorPageInfo(items, limit, encodeCursor)
		if err != nil {
			return nil, err
		}
		resp.NextPageToken = info.NextPageToken
	}

	resp.Entries = make([]auditdomain.EntryResponse, 0, len(items))
	for _, item := range items {
		resp.Entries = append(resp.Entries, toResponse(item))
	}
	return resp, nil
}

// resolveChangedBy prefers the explicit caller, then the request actor, and
// falls back to "system" for internal calls.
func (s *Service) resolveChangedBy(ctx context.Context, changedBy string) string {
	if trimmed := strings.TrimSpace(changedBy); trimmed != "" {
		return trimmed
	}
	if actor, ok := auditcontext.ActorFromContext(ctx); ok {
		return actor.ID
	}
	return auditdomain.ChangedBySystem
}

func requestMetadata(ctx context.Context) datatypes.JSONMap {
	payload := datatypes.JSONMap{}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if correlationID := obscontext.CorrelationIDFromContext(ctx); correlationID != "" {
		payload["correlation_id"] = correlationID
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		payload["ip_address"] = ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		payload["user_agent"] = ua
	}
	if actor, ok := auditcontext.ActorFromContext(ctx); ok {
		payload["actor_type"] = actor.Type
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

func encodeCursor(item auditdomain.FlagChangeLog) (string, error) {
	return pagination.EncodeCursor(pagination.Cursor{
		ID:        item.ID.String(),
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func decodeCursor(token string) (*auditdomain.Cursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, auditdomain.ErrInvalidPageToken
	}
	return &auditdomain.Cursor{CreatedAt: createdAt.UTC(), ID: id}, nil
}

func toResponse(item auditdomain.FlagChangeLog) auditdomain.EntryResponse {
	return auditdomain.EntryResponse{
		FeatureKey:  item.FeatureKey,
		Environment: item.Environment,
		ChangeType:  item.ChangeType,
		ChangedBy:   item.ChangedBy,
		Details:     item.Details,
		CreatedAt:   item.CreatedAt,
	}
}
