/**
 * @description
 * Provider registry assembly.
 * Builds the adapter set the worker dispatches on, keyed by provider name.
 * Providers without credentials are left out so their jobs fail fast with a
 * clear "no adapter registered" error instead of burning API calls.
 *
 * @dependencies
 * - backend/internal/providers and the three marketplace adapters
 */

package services

import (
	"gorm.io/gorm"

	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/providers"
	"github.com/solestack-project/backend/internal/providers/alias"
	"github.com/solestack-project/backend/internal/providers/ebay"
	"github.com/solestack-project/backend/internal/providers/stockx"
)

// BuildRegistry constructs adapters for every provider with usable credentials
func BuildRegistry(cfg *config.Config) providers.Registry {
	registry := providers.Registry{}

	if cfg.Providers.StockXAPIKey != "" && cfg.Providers.StockXClientID != "" {
		registry[string(models.ProviderStockX)] = stockx.NewClient(cfg)
	} else {
		logger.Info("⚠️ StockX credentials missing, adapter disabled")
	}

	if cfg.Providers.AliasToken != "" {
		registry[string(models.ProviderAlias)] = alias.NewClient(cfg)
	} else {
		logger.Info("⚠️ Alias token missing, adapter disabled")
	}

	if cfg.Providers.EbayClientID != "" && cfg.Providers.EbayClientSecret != "" {
		registry[string(models.ProviderEbay)] = ebay.NewClient(cfg)
	} else {
		logger.Info("⚠️ eBay credentials missing, adapter disabled")
	}

	return registry
}

// BuildSalesPipeline wires the eBay sales chain when the adapter is registered.
// Returns nil (no sales ingestion) otherwise.
func BuildSalesPipeline(db *gorm.DB, registry providers.Registry) *SalesPipeline {
	adapter, ok := registry[string(models.ProviderEbay)]
	if !ok {
		return nil
	}
	client, ok := adapter.(*ebay.Client)
	if !ok {
		return nil
	}
	return NewSalesPipeline(client, NewSalesService(db), NewMetricsService(db))
}
