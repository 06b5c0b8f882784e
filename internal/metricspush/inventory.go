package metricspush

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Inventory holds point-in-time counts of flags and API keys in a registry
// of its own, so a push never carries per-request series.
type Inventory struct {
	db       *gorm.DB
	flags    flagdomain.Repository
	apiKeys  apikeydomain.Repository
	registry *prometheus.Registry

	flagGauge   *prometheus.GaugeVec
	apiKeyGauge *prometheus.GaugeVec
}

type InventoryParams struct {
	fx.In

	DB      *gorm.DB
	Flags   flagdomain.Repository
	APIKeys apikeydomain.Repository
}

func NewInventory(p InventoryParams) *Inventory {
	registry := prometheus.NewRegistry()
	inv := &Inventory{
		db:       p.DB,
		flags:    p.Flags,
		apiKeys:  p.APIKeys,
		registry: registry,
		flagGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "featureflags_flags",
			Help: "Feature flags by environment and enabled state.",
		}, []string{"environment", "enabled"}),
		apiKeyGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "featureflags_api_keys",
			Help: "API keys by enabled state.",
		}, []string{"enabled"}),
	}
	registry.MustRegister(inv.flagGauge, inv.apiKeyGauge)
	return inv
}

func (i *Inventory) Gatherer() prometheus.Gatherer {
	return i.registry
}

// Refresh reloads both gauges from the store. Combinations with no rows are
// reported as zero rather than dropped.
func (i *Inventory) Refresh(ctx context.Context) error {
	flagCounts, err := i.flags.CountByEnvironment(ctx, i.db)
	if err != nil {
		return err
	}
	keyCounts, err := i.apiKeys.CountByEnabled(ctx, i.db)
	if err != nil {
		return err
	}

	for _, env := range flagdomain.Environments {
		for _, enabled := range []bool{true, false} {
			i.flagGauge.WithLabelValues(env.String(), strconv.FormatBool(enabled)).Set(0)
		}
	}
	for _, row := range flagCounts {
		i.flagGauge.WithLabelValues(row.Environment.String(), strconv.FormatBool(row.Enabled)).Set(float64(row.Total))
	}

	for _, enabled := range []bool{true, false} {
		i.apiKeyGauge.WithLabelValues(strconv.FormatBool(enabled)).Set(0)
	}
	for _, row := range keyCounts {
		i.apiKeyGauge.WithLabelValues(strconv.FormatBool(row.Enabled)).Set(float64(row.Total))
	}
	return nil
}
