package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocre/adapters/estimators"
	"gocre/adapters/forest"
	"gocre/adapters/httpapi"
	"gocre/adapters/memledger"
	"gocre/adapters/postgres"
	"gocre/adapters/rng"
	"gocre/adapters/tabular"
	"gocre/app"
	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/run"
	"gocre/internal/config"
	"gocre/internal/synthetic"
	"gocre/ports"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional for the CLI
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "gocre",
		Short: "Causal rule ensembles for heterogeneous treatment effects",
	}

	rootCmd.AddCommand(
		newRunCmd(cfg),
		newSynthCmd(),
		newShowCmd(cfg),
		newListCmd(cfg),
		newServeCmd(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		outcome      string
		treatment    string
		iteCol       string
		seed         int64
		ratio        float64
		methodDis    string
		methodInf    string
		intervention []string
		offset       string
		cv           bool
		penalty      float64
		pvalue       float64
		reportPath   string
	)

	cmd := &cobra.Command{
		Use:   "run [dataset]",
		Short: "Run the causal rule pipeline on a CSV or XLSX dataset",
		Long: `Run the full pipeline on a tabular dataset: honest split, rule
discovery, stability selection and effect decomposition. The file format
is inferred from the extension (.csv or .xlsx).

Example: gocre run experiment.xlsx --outcome y --treatment t --seed 12345`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := params.DefaultMethod()
			method.Seed = seed
			method.RatioDis = ratio
			method.ITEMethodDis = methodDis
			method.ITEMethodInf = methodInf
			method.InterventionVars = intervention
			method.Offset = offset

			hyper := params.DefaultHyper()
			hyper.TPvalue = pvalue
			hyper.PenaltyRL = penalty
			if cv {
				hyper.StabilitySelection = false
			}

			mapping := ports.ColumnMapping{Outcome: outcome, Treatment: treatment, ITE: iteCol}
			return runPipeline(cmd.Context(), cfg, args[0], mapping, method, hyper, reportPath)
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", cfg.Data.Outcome, "Outcome column name")
	cmd.Flags().StringVar(&treatment, "treatment", cfg.Data.Treatment, "Treatment column name (binary 0/1)")
	cmd.Flags().StringVar(&iteCol, "ite", cfg.Data.ITE, "Precomputed unit effect column (skips estimation)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic runs")
	cmd.Flags().Float64Var(&ratio, "ratio", 0.5, "Fraction of rows used for rule discovery")
	cmd.Flags().StringVar(&methodDis, "method", params.MethodAIPW,
		fmt.Sprintf("Effect estimator for discovery (%s)", strings.Join(params.SupportedITEMethods(), ", ")))
	cmd.Flags().StringVar(&methodInf, "method-inf", params.MethodAIPW, "Effect estimator for inference")
	cmd.Flags().StringSliceVar(&intervention, "intervention", nil, "Restrict rules to these covariates")
	cmd.Flags().StringVar(&offset, "offset", cfg.Data.Offset, "Offset covariate for count outcomes")
	cmd.Flags().BoolVar(&cv, "cv", false, "Select rules by cross-validated lasso instead of stability selection")
	cmd.Flags().Float64Var(&penalty, "penalty", 1, "Rule length penalty exponent for selection (0 disables)")
	cmd.Flags().Float64Var(&pvalue, "pvalue", 0.05, "Significance threshold for the final effect table")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a markdown or HTML report to this path")

	return cmd
}

func newSynthCmd() *cobra.Command {
	var (
		rows       int
		covariates int
		seed       int64
		effect     float64
		noise      float64
		confounded bool
		counts     bool
	)

	cmd := &cobra.Command{
		Use:   "synth [output]",
		Short: "Generate a benchmark dataset with planted subgroup effects",
		Long: `Generate a synthetic dataset with known subgroup effects and write it
to CSV or XLSX (inferred from the extension). The planted rules are
printed so recovered rules can be checked against them.

Example: gocre synth bench.csv --rows 2000 --effect 3 --seed 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := synthetic.Config{
				Rows:       rows,
				Covariates: covariates,
				Seed:       seed,
				EffectSize: effect,
				Noise:      noise,
				Confounded: confounded,
				Counts:     counts,
			}
			return runSynth(args[0], gen)
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 1000, "Number of rows to generate")
	cmd.Flags().IntVar(&covariates, "covariates", 10, "Number of binary covariates")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	cmd.Flags().Float64Var(&effect, "effect", 2, "Magnitude of the planted subgroup effects")
	cmd.Flags().Float64Var(&noise, "noise", 0.1, "Outcome noise standard deviation")
	cmd.Flags().BoolVar(&confounded, "confounded", false, "Tie treatment assignment to x1")
	cmd.Flags().BoolVar(&counts, "counts", false, "Generate Poisson count outcomes")

	return cmd
}

func newShowCmd(cfg *config.Config) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print the report for a stored run",
		Long: `Fetch a run from the ledger and print its report. Requires
DATABASE_URL, since in-memory runs do not outlive the process.

Example: gocre show 018f3c4e-... --format html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			return runShow(cmd.Context(), cfg, id, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "Report format (markdown or html)")

	return cmd
}

func newListCmd(cfg *config.Config) *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Long: `List runs from the ledger. Requires DATABASE_URL, since in-memory
runs do not outlive the process.

Example: gocre list --status completed --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := ports.RunFilters{Limit: limit, Offset: offset}
			if status != "" {
				s := run.Status(status)
				filters.Status = &s
			}
			return runList(cmd.Context(), cfg, filters)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (running, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")

	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run pipeline over HTTP",
		Long: `Start the HTTP API. Runs are stored in PostgreSQL when DATABASE_URL
is set, otherwise in memory.

Example: gocre serve --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":"+cfg.Server.Port, "Listen address")

	return cmd
}

func runPipeline(ctx context.Context, cfg *config.Config, path string, mapping ports.ColumnMapping, method params.Method, hyper params.Hyper, reportPath string) error {
	reader := tabular.New()
	obs, err := reader.ReadObservations(ctx, path, mapping)
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}

	ledger, cleanup, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := estimators.NewRegistry(forest.NewRegressor(), method.Offset)
	pipeline := app.NewPipeline(forest.NewLearner(), registry, rng.New(), ledger)

	record, err := pipeline.Execute(ctx, app.Request{Observations: obs, Method: method, Hyper: hyper})
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	printRecord(record)

	if reportPath != "" {
		if err := writeReport(reportPath, record); err != nil {
			return err
		}
		fmt.Printf("\n📄 Report written to %s\n", reportPath)
	}

	return nil
}

func runSynth(path string, gen synthetic.Config) error {
	ds, err := synthetic.Generate(gen)
	if err != nil {
		return fmt.Errorf("generating dataset: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = synthetic.WriteCSV(path, ds)
	case ".xlsx":
		err = synthetic.WriteXLSX(path, ds)
	default:
		return fmt.Errorf("unsupported output format %q (use .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}

	fmt.Printf("\n🧪 SYNTHETIC DATASET\n")
	fmt.Printf("File: %s\n", path)
	fmt.Printf("Rows: %d\n", ds.Observations.RowCount())
	fmt.Printf("Covariates: %d\n", ds.Observations.Covariates.ColumnCount())

	fmt.Printf("\n🎯 PLANTED RULES:\n")
	keys := synthetic.TrueRuleKeys()
	fmt.Printf("• %s: effect %+g\n", keys[0], gen.EffectSize)
	fmt.Printf("• %s: effect %+g\n", keys[1], -gen.EffectSize)

	return nil
}

func runShow(ctx context.Context, cfg *config.Config, id core.RunID, format string) error {
	ledger, cleanup, err := openStoredLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	record, err := ledger.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching run: %w", err)
	}

	switch format {
	case "markdown":
		fmt.Print(app.RenderMarkdown(record))
	case "html":
		os.Stdout.Write(app.RenderHTML(record))
	default:
		return fmt.Errorf("unsupported format %q (use markdown or html)", format)
	}

	return nil
}

func runList(ctx context.Context, cfg *config.Config, filters ports.RunFilters) error {
	ledger, cleanup, err := openStoredLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	summaries, err := ledger.ListRuns(ctx, filters)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Printf("\n📋 RUNS (%d):\n", len(summaries))
	for _, s := range summaries {
		fmt.Printf("• %s  %s  started=%s  duration=%dms  significant=%d\n",
			s.ID, s.Status, s.StartedAt.Time().Format("2006-01-02 15:04:05"),
			s.DurationMS, s.Significant)
	}

	return nil
}

func runServe(ctx context.Context, cfg *config.Config, addr string) error {
	ledger, cleanup, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := estimators.NewRegistry(forest.NewRegressor(), cfg.Data.Offset)
	pipeline := app.NewPipeline(forest.NewLearner(), registry, rng.New(), ledger)
	server := httpapi.NewServer(pipeline, tabular.New(), ledger, registry)

	return server.Start(addr)
}

// openLedger picks the run store: PostgreSQL when DATABASE_URL is set,
// otherwise an in-memory ledger scoped to this process.
func openLedger(ctx context.Context, cfg *config.Config) (ports.RunLedgerPort, func(), error) {
	if cfg.Database.URL == "" {
		return memledger.New(), func() {}, nil
	}
	return openPostgres(ctx, cfg.Database.URL)
}

// openStoredLedger is openLedger for commands that read past runs, where
// an empty in-memory store would only ever answer "not found".
func openStoredLedger(ctx context.Context, cfg *config.Config) (ports.RunLedgerPort, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required to read stored runs")
	}
	return openPostgres(ctx, cfg.Database.URL)
}

func openPostgres(ctx context.Context, url string) (ports.RunLedgerPort, func(), error) {
	db, err := postgres.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	ledger := postgres.NewLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("preparing run ledger: %w", err)
	}
	return ledger, func() { db.Close() }, nil
}

func printRecord(record *run.Record) {
	fmt.Printf("\n📊 RUN %s (%s)\n", record.ID, record.Status)
	fmt.Printf("Effects: discovery=%s inference=%s seed=%d\n",
		record.Method.ITEMethodDis, record.Method.ITEMethodInf, record.Method.Seed)

	fmt.Printf("\n🔎 RULE FUNNEL:\n")
	fmt.Printf("• generated: %d\n", record.Counts.Generated)
	fmt.Printf("• after decay filter: %d\n", record.Counts.AfterDecay)
	fmt.Printf("• after support filter: %d\n", record.Counts.AfterSupport)
	fmt.Printf("• after correlation filter: %d\n", record.Counts.AfterCorrelation)
	fmt.Printf("• selected: %d\n", record.Counts.Selected)
	fmt.Printf("• significant: %d\n", record.Counts.Significant)

	if record.Table != nil && len(record.Table.Rows) > 0 {
		fmt.Printf("\n✅ TREATMENT EFFECTS:\n")
		for _, row := range record.Table.Rows {
			fmt.Printf("• %-30s %+.4f (se %.4f, p %.4g, 95%% CI [%+.4f, %+.4f])\n",
				row.Rule, row.Estimate, row.StdError, row.PValue, row.CILower, row.CIUpper)
		}
	}

	if len(record.Predictions) > 0 {
		mean, min, max := predictionStats(record.Predictions)
		fmt.Printf("\n📈 PREDICTED EFFECTS:\n")
		fmt.Printf("%d units, mean %.4f, range [%.4f, %.4f]\n", len(record.Predictions), mean, min, max)
	}

	if len(record.Timings) > 0 {
		fmt.Printf("\n⏱️  STAGE TIMINGS:\n")
		for _, t := range record.Timings {
			fmt.Printf("• %s: %dms\n", t.Stage, t.DurationMS)
		}
	}
}

func predictionStats(preds []float64) (mean, min, max float64) {
	min, max = preds[0], preds[0]
	var sum float64
	for _, v := range preds {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return sum / float64(len(preds)), min, max
}

func writeReport(path string, record *run.Record) error {
	var payload []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		payload = app.RenderHTML(record)
	default:
		payload = []byte(app.RenderMarkdown(record))
	}
	return os.WriteFile(path, payload, 0o644)
}
