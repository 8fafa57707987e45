package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/oxtoacart/bpool"
	"github.com/rs/zerolog"

	"github.com/weirdtangent/myaws"
)

func main() {
	ctx := setupLogging()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// connect to AWS, only when something needs it
	var awssess *session.Session
	if cfg.AWSSecretName != "" || cfg.SessionTable != "" || cfg.CSPReportBucket != "" {
		awssess, err = myaws.AWSConnect(cfg.AWSRegion, "currencyview")
		if err != nil {
			zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to connect to AWS")
		}
	}

	if err := loadSecrets(ctx, cfg, awssess); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to load secrets")
	}
	if err := fillRandomCookieKeys(ctx, cfg); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to generate cookie keys")
	}

	deps, err := newDependencies(ctx, cfg, awssess)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to start")
	}

	if err := startHTTPServer(ctx, deps); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("ended abnormally")
	}
}

func newDependencies(ctx context.Context, cfg *Config, awssess *session.Session) (*Dependencies, error) {
	apiClient, err := NewAPIClient(cfg.APIBaseURL, nil)
	if err != nil {
		return nil, err
	}

	templates, err := loadTemplates(cfg.TemplateDir)
	if err != nil {
		return nil, err
	}
	chartTemplate, err := parseChartTemplate(cfg.TemplateDir)
	if err != nil {
		return nil, err
	}

	store, err := setupSessionsStore(ctx, cfg, awssess)
	if err != nil {
		return nil, err
	}

	elementIDs, err := newElementIDs(cfg.ElementIDKey)
	if err != nil {
		return nil, err
	}

	var reportSink ReportSink = logReportSink{}
	if cfg.CSPReportBucket != "" && awssess != nil {
		reportSink = newS3ReportSink(awssess, cfg.CSPReportBucket)
	}

	return &Dependencies{
		config:        cfg,
		apiClient:     apiClient,
		templates:     templates,
		chartTemplate: chartTemplate,
		bufpool:       bpool.NewBufferPool(64),
		cookieStore:   store,
		elementIDs:    elementIDs,
		metrics:       newMetrics(),
		reportSink:    reportSink,
		description:   renderDescription(apiClient.DocsURL()),
		logger:        zerolog.Ctx(ctx),
	}, nil
}
