package domain

import (
	"context"
	"strconv"

	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
)

const (
	ReasonFlagNotFound = "FLAG_NOT_FOUND"
	ReasonFlagDisabled = "FLAG_DISABLED"
	ReasonTargetedUser = "TARGETED_USER"
	ReasonRollout0     = "ROLLOUT_0"
	ReasonRollout100   = "ROLLOUT_100"

	reasonBucketPrefix = "ROLLOUT_BUCKET_"
)

// BucketReason formats the reason for a percentage bucket decision.
func BucketReason(bucket int) string {
	return reasonBucketPrefix + strconv.Itoa(bucket)
}

// Result is the outcome of one evaluation. A missing flag is a result, not
// an error.
type Result struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}

type EvaluateRequest struct {
	FeatureKey  string
	Environment flagdomain.Environment
	UserID      string
}

type Service interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (Result, error)
}
