package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/featureflags/internal/auditcontext"
)

const (
	ObjectFlag        = "flag"
	ObjectFlagTarget  = "flag_target"
	ObjectFlagHistory = "flag_history"
	ObjectAPIKey      = "api_key"
)

const (
	ActionFlagEvaluate = "flag.evaluate"
	ActionFlagView     = "flag.view"
	ActionFlagCreate   = "flag.create"
	ActionFlagUpdate   = "flag.update"

	ActionFlagTargetView   = "flag_target.view"
	ActionFlagTargetCreate = "flag_target.create"
	ActionFlagTargetDelete = "flag_target.delete"

	ActionFlagHistoryView = "flag_history.view"

	ActionAPIKeyView   = "api_key.view"
	ActionAPIKeyCreate = "api_key.create"
	ActionAPIKeyRevoke = "api_key.revoke"
)

const (
	RoleAdmin     = "role:admin"
	RoleAPIClient = "role:api_client"
)

type Service interface {
	Authorize(ctx context.Context, actor auditcontext.Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
