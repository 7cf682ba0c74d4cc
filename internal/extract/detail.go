package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/metrics"
	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// Locator maps a package ID to its detail page URL.
type Locator interface {
	DetailURL(packageID string) string
}

// DetailFetcher downloads detail pages and extracts the work description.
type DetailFetcher struct {
	fetcher   procurement.Fetcher
	locator   Locator
	extractor Extractor
	logger    *zap.Logger
}

var _ procurement.DetailSource = (*DetailFetcher)(nil)

// NewDetailFetcher builds a DetailFetcher; a nil extractor selects the scan extractor.
func NewDetailFetcher(fetcher procurement.Fetcher, locator Locator, extractor Extractor, logger *zap.Logger) *DetailFetcher {
	if extractor == nil {
		extractor = ScanExtractor{Label: DefaultLabel}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailFetcher{
		fetcher:   fetcher,
		locator:   locator,
		extractor: extractor,
		logger:    logger.Named("detail"),
	}
}

// FetchDetail returns the work description of packageID. Failures are
// logged and yield "".
func (d *DetailFetcher) FetchDetail(ctx context.Context, packageID string) string {
	target := d.locator.DetailURL(packageID)
	resp, err := d.fetcher.Get(ctx, target, nil)
	if err != nil {
		metrics.ObserveDetail(metrics.DetailFailed)
		d.logger.Debug("detail fetch failed", zap.String("package_id", packageID), zap.Error(err))
		return ""
	}
	text := d.extractor.Extract(resp.Body)
	if text == "" {
		metrics.ObserveDetail(metrics.DetailMissing)
		return ""
	}
	metrics.ObserveDetail(metrics.DetailFound)
	return text
}
