package observability

import (
	"os"
	"strings"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
	),
)

func provideMetricsConfig(cfg config.Config) metrics.Config {
	enabled := true
	if raw, ok := os.LookupEnv("OTEL_ENABLED"); ok {
		enabled = strings.EqualFold(strings.TrimSpace(raw), "true")
	}
	return metrics.Config{
		Enabled:          enabled,
		ExporterEndpoint: cfg.OTLPEndpoint,
		ExporterProtocol: strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER_PROTOCOL"))),
		ServiceName:      cfg.AppName,
		Environment:      cfg.Environment,
	}
}
