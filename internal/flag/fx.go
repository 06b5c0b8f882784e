package flag

import (
	"github.com/smallbiznis/featureflags/internal/flag/repository"
	"github.com/smallbiznis/featureflags/internal/flag/service"
	"go.uber.org/fx"
)

var Module = fx.Module("flag.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
