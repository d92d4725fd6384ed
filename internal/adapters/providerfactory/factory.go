package providerfactory

import (
	"aeroclaim/internal/adapters/config"
	"aeroclaim/internal/adapters/providers"
	"aeroclaim/internal/adapters/providers/aerodatabox"
	"aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

// New builds the configured flight data provider. Adding a second vendor
// means adding a case here and nothing else; call sites only see the
// FlightProvider interface.
func New(cfg config.ProviderConfig, log *logger.Logger) (providers.FlightProvider, error) {
	switch cfg.Name {
	case "", "aerodatabox":
		return aerodatabox.NewClient(aerodatabox.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			AuthStyle:         providers.DetectAuthStyle(cfg.BaseURL),
			Timeout:           cfg.Timeout,
			MaxRetries:        cfg.MaxRetries,
			RetryBaseDelay:    cfg.RetryBaseDelay,
			RetryMaxDelay:     cfg.RetryMaxDelay,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}, log)
	default:
		return nil, errors.Newf("unknown flight provider: %s", cfg.Name)
	}
}
