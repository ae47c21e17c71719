package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"log/slog"

	"github.com/gridcast/gridcast/internal/dataset"
	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/forecaster"
)

// gridcast runs a single forecast from CSV inputs, without a database or
// HTTP server. It reads merged demand+weather history, an optional
// demand-only series, and a weather horizon, then writes the forecast CSV.
func main() {
	var (
		mergedPath  = flag.String("merged", "", "merged demand+weather history CSV (required)")
		demandPath  = flag.String("demand", "", "optional demand-only history CSV")
		weatherPath = flag.String("weather", "", "weather horizon CSV (required)")
		regionsPath = flag.String("regions", "", "optional regions/holidays YAML file")
		outPath     = flag.String("out", "forecast.csv", "output CSV path")
		model       = flag.String("model", "linear", "forecast model: linear, hybrid or boosted")
		scale       = flag.Float64("scale", 0, "scale adjustment in percent, e.g. 5 for +5%")
		growth      = flag.Float64("growth", 0, "hybrid growth in percent per day ahead")
		seed        = flag.Int64("seed", 42, "boosted model RNG seed")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *mergedPath == "" || *weatherPath == "" {
		fmt.Fprintln(os.Stderr, "both -merged and -weather are required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(logger, *mergedPath, *demandPath, *weatherPath, *regionsPath, *outPath, *model, *scale, *growth, *seed); err != nil {
		logger.Error("forecast failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, mergedPath, demandPath, weatherPath, regionsPath, outPath, model string, scale, growth float64, seed int64) error {
	calendar := features.DefaultCalendar()
	if regionsPath != "" {
		var err error
		calendar, err = features.LoadCalendar(regionsPath)
		if err != nil {
			return err
		}
	}

	merged, err := dataset.ReadMergedSeries(mergedPath)
	if err != nil {
		return err
	}
	logger.Info("history loaded", "path", mergedPath, "rows", len(merged))

	input := forecaster.RunInput{
		Merged: merged,
		Params: forecaster.Params{
			Model:         model,
			ScalePercent:  scale,
			GrowthPercent: growth,
			BlendRatio:    forecaster.DefaultBlendRatio,
			Seed:          seed,
		},
	}

	if demandPath != "" {
		demand, err := dataset.ReadDemandSeries(demandPath)
		if err != nil {
			return err
		}
		logger.Info("demand series loaded", "path", demandPath, "rows", len(demand))
		input.Demand = demand
	}

	horizon, err := dataset.ReadWeatherSeries(weatherPath)
	if err != nil {
		return err
	}
	logger.Info("weather horizon loaded", "path", weatherPath, "rows", len(horizon))
	input.Horizon = horizon

	service := forecaster.NewService(calendar, logger, nil)
	report, err := service.Run(context.Background(), input)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		"run_id", report.RunID,
		"model", report.Model,
		"samples", report.SampleCount,
		"results", len(report.Results),
		"r2", report.Metrics.R2,
		"mape", report.Metrics.MAPE,
		"duration", report.Duration,
	)

	if err := dataset.WriteForecasts(outPath, report.Results); err != nil {
		return err
	}
	logger.Info("forecast written", "path", outPath, "rows", len(report.Results))
	return nil
}
