package factory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/StorefrontFeed/internal/infra/catalog"
	"github.com/StorefrontFeed/internal/infra/transformer"
	"github.com/StorefrontFeed/pkg/config"
)

// NewCatalogClient creates the catalog page fetcher for the configured response format.
func NewCatalogClient(cfg *config.Config) (*catalog.Client, error) {
	if cfg.CatalogBaseURL == "" {
		return nil, errors.New("catalog base URL not configured")
	}
	if cfg.CatalogMaxRetries < 0 || cfg.CatalogMaxRetries > 10 {
		return nil, fmt.Errorf("invalid catalog max retries: %d (must be 0-10)", cfg.CatalogMaxRetries)
	}

	tr, err := transformer.GetTransformer(cfg.CatalogFormat)
	if err != nil {
		return nil, err
	}

	client := catalog.NewClient(catalog.Config{
		Name:       "catalog",
		BaseURL:    cfg.CatalogBaseURL,
		Timeout:    cfg.CatalogTimeout,
		MaxRetries: cfg.CatalogMaxRetries,
	}, tr)
	slog.Info("Registered catalog", "url", cfg.CatalogBaseURL, "format", cfg.CatalogFormat)
	return client, nil
}
