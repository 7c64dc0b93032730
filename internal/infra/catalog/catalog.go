// Package catalog constructs the catalog collaborator from configuration.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/tonearm/tonearm/internal/app/player"
	spotifycat "github.com/tonearm/tonearm/internal/infra/catalog/spotify"
	"github.com/tonearm/tonearm/internal/infra/config"
)

// NewService creates a catalog service from the provider configuration.
// Provider settings are a free-form map in YAML; each provider decodes the
// subset it understands.
func NewService(ctx context.Context, cfg config.ProviderConfig) (player.Catalog, error) {
	zlog.Debug().Str("type", cfg.Type).Msg("catalog: creating provider")

	switch cfg.Type {
	case "spotify":
		var settings spotifycat.Settings
		if err := mapstructure.Decode(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "failed to decode spotify settings")
		}
		return spotifycat.New(ctx, settings)
	default:
		return nil, errors.Newf("unsupported catalog provider type: %s", cfg.Type)
	}
}
