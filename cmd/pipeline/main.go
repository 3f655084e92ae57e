// Command pipeline normalizes one exported financial statement file and
// prints the pipeline result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"financial_dashboard/pkg/core/bootstrap"
	"financial_dashboard/pkg/core/config"
	"financial_dashboard/pkg/core/ingest"
	"financial_dashboard/pkg/core/logging"
	"financial_dashboard/pkg/core/pipeline"
	"financial_dashboard/pkg/models"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "pipeline config file")
		clientID   = flag.String("client", "", "client ID for mapping overrides")
		chartList  = flag.String("charts", "", "comma-separated chart IDs (default: all)")
		target     = flag.String("unit", "", "target unit: euros, thousands or millions (default: detected)")
		scenario   = flag.String("scenario", "", "projection scenario: base, optimista or pesimista")
		years      = flag.Int("years", 0, "projection horizon in years (default from config)")
		all        = flag.Bool("all-scenarios", false, "project every scenario")
		deep       = flag.Bool("deep", false, "run LLM deep validation")
		quiet      = flag.Bool("quiet", false, "only log warnings and errors")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: pipeline [flags] <file.xlsx|file.html|file.json>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load() // optional

	app, err := bootstrap.New(context.Background(), bootstrap.Options{
		ConfigPath: *configPath,
		Mutate: func(c *config.Config) {
			c.DeepValidation.Enabled = *deep
			c.LogPretty = true
			if *quiet {
				c.LogLevel = "warn"
			}
		},
	})
	if err != nil {
		startupLog := logging.New("info", true)
		startupLog.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()
	log := app.Log

	src, err := ingest.ReadFile(flag.Arg(0))
	if err != nil {
		log.Error().Err(err).Str("file", flag.Arg(0)).Msg("cannot read input")
		app.Close()
		os.Exit(1)
	}
	if len(src.Duplicates) > 0 {
		log.Warn().Strs("labels", src.Duplicates).Msg("repeated labels, first value kept")
	}

	in := pipeline.Input{
		Fields:             src.Fields,
		Labels:             src.Labels,
		ClientID:           *clientID,
		TargetUnit:         models.Unit(*target),
		SkipDeepValidation: !*deep,
		FileID:             src.Name,
	}
	if *chartList != "" {
		in.Charts = strings.Split(*chartList, ",")
	}
	if *scenario != "" || *all || *years > 0 {
		in.Projection = &pipeline.ProjectionRequest{Scenario: *scenario, Years: *years, AllScenarios: *all}
	}

	res, err := app.Pipeline.Run(context.Background(), in)
	if err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		app.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Error().Err(err).Msg("encode result")
		app.Close()
		os.Exit(1)
	}
	if !res.IsValid {
		os.Exit(3)
	}
}
