// Command royaltyctl runs royalty calculations and projections against the
// configured Firestore project and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/folio-press/api/internal/domain"
	"github.com/folio-press/api/internal/platform/config"
	pfirestore "github.com/folio-press/api/internal/platform/firestore"
	"github.com/folio-press/api/internal/platform/observability"
	firestoreRepo "github.com/folio-press/api/internal/repositories/firestore"
	"github.com/folio-press/api/internal/services"
)

const dateLayout = "2006-01-02"

type options struct {
	mode         string
	tenantID     string
	authorID     string
	titleID      string
	start        string
	end          string
	format       string
	windowMonths int
	timeout      time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "author", "calculation mode: author, title, or projection")
	flag.StringVar(&opts.tenantID, "tenant", "", "tenant identifier (required)")
	flag.StringVar(&opts.authorID, "author", "", "author identifier (author and projection modes)")
	flag.StringVar(&opts.titleID, "title", "", "title identifier (title mode)")
	flag.StringVar(&opts.start, "start", "", "period start date, inclusive (YYYY-MM-DD)")
	flag.StringVar(&opts.end, "end", "", "period end date, exclusive (YYYY-MM-DD)")
	flag.StringVar(&opts.format, "format", "", "sales format for projections (physical, ebook, audiobook)")
	flag.IntVar(&opts.windowMonths, "window", 0, "trailing velocity window in months (projection mode, 0 uses the configured default)")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall execution timeout")
	flag.Parse()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("royaltyctl")

	if err := run(logger, opts); err != nil {
		logger.Fatal("royaltyctl failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, opts options) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	registry, err := firestoreRepo.NewRegistry(provider)
	if err != nil {
		return fmt.Errorf("initialise repositories: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	events := observability.EventLogger(logger)

	switch opts.mode {
	case "author":
		svc, err := services.NewRoyaltyService(services.RoyaltyServiceDeps{
			Contracts: registry.Contracts(),
			Sales:     registry.Sales(),
			Returns:   registry.Returns(),
			Logger:    events,
		})
		if err != nil {
			return err
		}
		period, err := parsePeriod(opts.start, opts.end)
		if err != nil {
			return err
		}
		calc, err := svc.CalculateForAuthor(ctx, services.CalculateCommand{
			TenantID: opts.tenantID,
			AuthorID: opts.authorID,
			Period:   period,
		})
		if err != nil {
			return err
		}
		return printJSON(calc)

	case "title":
		svc, err := services.NewRoyaltyService(services.RoyaltyServiceDeps{
			Contracts: registry.Contracts(),
			Sales:     registry.Sales(),
			Returns:   registry.Returns(),
			Logger:    events,
		})
		if err != nil {
			return err
		}
		period, err := parsePeriod(opts.start, opts.end)
		if err != nil {
			return err
		}
		calc, err := svc.CalculateForTitle(ctx, services.CalculateTitleCommand{
			TenantID: opts.tenantID,
			TitleID:  opts.titleID,
			Period:   period,
		})
		if err != nil {
			return err
		}
		return printJSON(calc)

	case "projection":
		engine, err := services.NewProjectionEngine(services.ProjectionEngineDeps{
			Contracts:           registry.Contracts(),
			Sales:               registry.Sales(),
			Logger:              events,
			DefaultWindowMonths: cfg.Projection.DefaultWindowMonths,
		})
		if err != nil {
			return err
		}
		projection, err := engine.ProjectRoyalty(ctx, services.ProjectionCommand{
			TenantID:     opts.tenantID,
			AuthorID:     opts.authorID,
			Format:       domain.Format(opts.format),
			WindowMonths: opts.windowMonths,
		})
		if err != nil {
			return err
		}
		return printJSON(projection)

	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
}

func parsePeriod(start, end string) (domain.Period, error) {
	if start == "" || end == "" {
		return domain.Period{}, fmt.Errorf("start and end dates are required")
	}
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return domain.Period{}, fmt.Errorf("parse start date: %w", err)
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return domain.Period{}, fmt.Errorf("parse end date: %w", err)
	}
	return domain.Period{Start: from.UTC(), End: to.UTC()}, nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
