package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/clock/system"
	"github.com/JakeFAU/sirup-adspend/internal/config"
	"github.com/JakeFAU/sirup-adspend/internal/extract"
	collyfetcher "github.com/JakeFAU/sirup-adspend/internal/fetcher/colly"
	ids "github.com/JakeFAU/sirup-adspend/internal/id/uuid"
	"github.com/JakeFAU/sirup-adspend/internal/keyword"
	"github.com/JakeFAU/sirup-adspend/internal/policy/ratelimit"
	"github.com/JakeFAU/sirup-adspend/internal/policy/retry"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
	"github.com/JakeFAU/sirup-adspend/internal/scrape"
	"github.com/JakeFAU/sirup-adspend/internal/sirup"
)

// newOrchestrator assembles the portal client, detail extractor, matcher and
// both worker pools from configuration.
func newOrchestrator(cfg config.Config, logger *zap.Logger, emitter progress.Emitter) (*scrape.Orchestrator, error) {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:           cfg.Portal.UserAgent,
		Timeout:             cfg.HTTP.Timeout(),
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
		Retry: retry.Config{
			MaxRetries:    cfg.HTTP.RetryCount(),
			BackoffFactor: cfg.HTTP.BackoffFactor(),
			MaxBackoff:    cfg.HTTP.MaxBackoff(),
		},
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			Burst:             cfg.HTTP.Burst,
		},
	}, collyfetcher.WithLogger(logger.Named("fetcher")))

	client := sirup.New(fetcher, sirup.Config{
		BaseURL:  cfg.Portal.BaseURL,
		PageSize: cfg.Portal.PageSize,
		MaxPages: cfg.Portal.MaxPages,
	}, logger.Named("sirup"))

	extractor, err := extract.New(cfg.Scrape.Extractor, extract.DefaultLabel)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	details := extract.NewDetailFetcher(fetcher, client, extractor, logger.Named("detail"))

	clock := system.New()
	processor := scrape.NewUnitProcessor(client, details, keyword.Default(), clock, logger)
	return scrape.NewOrchestrator(client, processor,
		scrape.WithEmitter(emitter),
		scrape.WithClock(clock),
		scrape.WithIDGenerator(ids.New()),
		scrape.WithLogger(logger.Named("scrape")),
	), nil
}
