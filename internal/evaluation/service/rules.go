package service

import (
	"github.com/smallbiznis/featureflags/internal/cache"
	"github.com/smallbiznis/featureflags/internal/evaluation/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/pkg/keyhash"
)

// input is what the rules see. targeted is called lazily so the target
// lookup only happens when the earlier rules did not decide.
type input struct {
	featureKey string
	userID     string
	flag       *cache.FlagSnapshot
	targeted   func() (bool, error)
}

// rule returns matched=false to pass the decision to the next rule.
type rule struct {
	name  string
	apply func(in *input) (result domain.Result, matched bool, err error)
}

// rules run in order and stop at the first match.
var rules = []rule{
	{name: "flag_present", apply: flagPresent},
	{name: "flag_enabled", apply: flagEnabled},
	{name: "user_targeted", apply: userTargeted},
	{name: "rollout_boundary", apply: rolloutBoundary},
	{name: "rollout_bucket", apply: rolloutBucket},
}

func flagPresent(in *input) (domain.Result, bool, error) {
	if in.flag == nil {
		return domain.Result{Enabled: false, Reason: domain.ReasonFlagNotFound}, true, nil
	}
	return domain.Result{}, false, nil
}

func flagEnabled(in *input) (domain.Result, bool, error) {
	if !in.flag.Enabled {
		return domain.Result{Enabled: false, Reason: domain.ReasonFlagDisabled}, true, nil
	}
	return domain.Result{}, false, nil
}

func userTargeted(in *input) (domain.Result, bool, error) {
	if in.userID == "" || in.targeted == nil {
		return domain.Result{}, false, nil
	}
	ok, err := in.targeted()
	if err != nil {
		return domain.Result{}, false, err
	}
	if ok {
		return domain.Result{Enabled: true, Reason: domain.ReasonTargetedUser}, true, nil
	}
	return domain.Result{}, false, nil
}

func rolloutBoundary(in *input) (domain.Result, bool, error) {
	switch {
	case in.flag.RolloutPercent <= flagdomain.MinRolloutPercent:
		return domain.Result{Enabled: false, Reason: domain.ReasonRollout0}, true, nil
	case in.flag.RolloutPercent >= flagdomain.MaxRolloutPercent:
		return domain.Result{Enabled: true, Reason: domain.ReasonRollout100}, true, nil
	}
	return domain.Result{}, false, nil
}

func rolloutBucket(in *input) (domain.Result, bool, error) {
	bucket := keyhash.Bucket(in.featureKey, in.userID)
	return domain.Result{
		Enabled: bucket < in.flag.RolloutPercent,
		Reason:  domain.BucketReason(bucket),
	}, true, nil
}

func decide(in *input) (domain.Result, string, error) {
	for _, r := range rules {
		result, matched, err := r.apply(in)
		if err != nil {
			return domain.Result{}, r.name, err
		}
		if matched {
			return result, r.name, nil
		}
	}
	// rolloutBucket always matches; reaching here means the chain was edited.
	return domain.Result{Enabled: false, Reason: domain.ReasonFlagDisabled}, "", nil
}
