package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gomediate/adapters/excel"
	"gomediate/adapters/regression"
	"gomediate/app"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	"gomediate/internal"
	"gomediate/internal/report"
	"gomediate/internal/testkit"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediate",
		Short: "Mediation study CLI for assembling prediction grids",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newDemoCmd(),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		exposure  string
		exposure2 string
		mediator  string
		mediator2 string
		outcome   string
		groupBy   string
		points    int
		level     float64
		noCI      bool
		popLevel  bool
		outDir    string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "run [kind] [data-file]",
		Short: "Assemble prediction tables for one study from a data file",
		Long: `Run one mediation study against a CSV, Excel or JSON dataset. The
data file is a local path or an http(s) URL.

Kind selects the assembler: simple, exposure_interaction or
mediator_interaction.

Example: mediate run simple trial.csv --exposure dose --mediator biomarker --outcome response`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := mediation.ParseKind(args[0])
			if err != nil {
				return err
			}
			if quiet {
				internal.DefaultLogger.SetLevel(internal.LogLevelError)
			}

			cfg := mediation.DefaultConfig()
			cfg.Points = points
			cfg.ConfidenceLevel = level
			cfg.ConfidenceIntervals = !noCI
			cfg.IgnoreRandomEffects = popLevel

			vars := mediation.Variables{
				Exposure:  exposure,
				Exposure2: exposure2,
				Mediator:  mediator,
				Mediator2: mediator2,
				Outcome:   outcome,
				GroupBy:   groupBy,
			}

			return runStudy(cmd.Context(), kind, args[1], vars, cfg, outDir)
		},
	}

	cmd.Flags().StringVar(&exposure, "exposure", "", "Exposure column name")
	cmd.Flags().StringVar(&exposure2, "exposure2", "", "Second exposure column (exposure_interaction)")
	cmd.Flags().StringVar(&mediator, "mediator", "", "Mediator column name")
	cmd.Flags().StringVar(&mediator2, "mediator2", "", "Second mediator column (mediator_interaction)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Outcome column name")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "Grouping column for random intercepts")
	cmd.Flags().IntVar(&points, "points", 30, "Grid resolution for continuous sweeps")
	cmd.Flags().Float64Var(&level, "confidence-level", 0.95, "Confidence level for prediction intervals")
	cmd.Flags().BoolVar(&noCI, "no-intervals", false, "Skip confidence interval computation")
	cmd.Flags().BoolVar(&popLevel, "population", false, "Ignore random effects in predictions")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for markdown, HTML and Excel exports")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Only log errors")

	return cmd
}

func newDemoCmd() *cobra.Command {
	var seed int64
	var rows int
	var points int
	var outDir string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run all three assemblers on a synthetic trial",
		Long: `Generate a synthetic mediation trial and run every study kind
against it, with grouped fits over the site column.

Example: mediate demo --seed 42 --rows 600 --out-dir ./reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), seed, rows, points, outDir)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic data")
	cmd.Flags().IntVar(&rows, "rows", 600, "Number of simulated observations")
	cmd.Flags().IntVar(&points, "points", 30, "Grid resolution for continuous sweeps")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for markdown, HTML and Excel exports")

	return cmd
}

func newGenerateCmd() *cobra.Command {
	var rows int
	var sites int
	var seed int64
	var format string

	cmd := &cobra.Command{
		Use:   "generate [out-file]",
		Short: "Write a synthetic mediation trial dataset",
		Long: `Generate a deterministic synthetic trial and save it as CSV or
Excel, ready for the run command.

Example: mediate generate trial.xlsx --rows 500 --seed 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(args[0], rows, sites, seed, format)
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 600, "Number of simulated observations")
	cmd.Flags().IntVar(&sites, "sites", 4, "Number of simulated sites")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic data")
	cmd.Flags().StringVar(&format, "format", "", "Output format: xlsx or csv (default inferred from the file extension)")

	return cmd
}

func runStudy(ctx context.Context, kind mediation.Kind, dataFile string, vars mediation.Variables, cfg mediation.Config, outDir string) error {
	dataset, err := excel.NewDataReader().Read(dataFile)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	if len(dataset.DroppedColumns) > 0 {
		fmt.Printf("Dropped non-numeric columns: %s\n", strings.Join(dataset.DroppedColumns, ", "))
	}

	service := newStudyService()
	study, err := service.Run(ctx, kind, app.StudyRequest{
		Data:        dataset.Table,
		DatasetName: dataset.Name,
		Variables:   vars,
		Config:      cfg,
	})
	if err != nil {
		return fmt.Errorf("study failed: %w", err)
	}

	printStudy(study)

	if outDir != "" {
		return exportStudy(study, outDir)
	}
	return nil
}

func runDemo(ctx context.Context, seed int64, rows, points int, outDir string) error {
	genCfg := testkit.DefaultTrialConfig()
	genCfg.Seed = seed
	genCfg.Rows = rows

	dataset, err := testkit.NewTrialDataGenerator(genCfg).GenerateDataset("demo_trial")
	if err != nil {
		return fmt.Errorf("failed to generate trial: %w", err)
	}
	fmt.Printf("Generated %d observations across %d sites (seed %d)\n",
		dataset.Table.NumRows(), genCfg.Sites, seed)

	service := newStudyService()

	cfg := mediation.DefaultConfig()
	cfg.Points = points
	cfg.IgnoreRandomEffects = true

	vars := mediation.Variables{
		Exposure:  testkit.ColExposure,
		Exposure2: testkit.ColExposure2,
		Mediator:  testkit.ColMediator,
		Mediator2: testkit.ColMediator2,
		Outcome:   testkit.ColOutcome,
		GroupBy:   testkit.ColSite,
	}

	kinds := []mediation.Kind{
		mediation.KindSimple,
		mediation.KindExposureInteraction,
		mediation.KindMediatorInteraction,
	}
	for _, kind := range kinds {
		study, err := service.Run(ctx, kind, app.StudyRequest{
			Data:        dataset.Table,
			DatasetName: dataset.Name,
			Variables:   vars,
			Config:      cfg,
		})
		if err != nil {
			return fmt.Errorf("%s study failed: %w", kind, err)
		}
		printStudy(study)
		if outDir != "" {
			if err := exportStudy(study, outDir); err != nil {
				return err
			}
		}
	}

	fmt.Printf("\nDemo completed: %d studies assembled\n", len(kinds))
	return nil
}

func runGenerate(out string, rows, sites int, seed int64, format string) error {
	cfg := testkit.DefaultTrialConfig()
	cfg.Rows = rows
	cfg.Sites = sites
	cfg.Seed = seed

	name := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	dataset, err := testkit.NewTrialDataGenerator(cfg).GenerateDataset(name)
	if err != nil {
		return fmt.Errorf("failed to generate dataset: %w", err)
	}

	fmtName := strings.ToLower(strings.TrimSpace(format))
	if fmtName == "" {
		if strings.ToLower(filepath.Ext(out)) == ".csv" {
			fmtName = "csv"
		} else {
			fmtName = "xlsx"
		}
	}

	switch fmtName {
	case "csv":
		err = excel.WriteDatasetCSV(out, dataset)
	case "xlsx":
		err = excel.WriteDatasetXLSX(out, dataset)
	default:
		return fmt.Errorf("unsupported format: %s", fmtName)
	}
	if err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}

	fmt.Printf("Dataset written: %s\n", out)
	fmt.Printf("Columns: %d | Rows: %d\n", dataset.Table.NumCols(), dataset.Table.NumRows())
	return nil
}

func newStudyService() *app.StudyService {
	return app.NewStudyService(
		app.NewEffectsService(nil),
		regression.NewFitter(nil),
		testkit.NewInMemoryStudyStore(),
		nil,
	)
}

func printStudy(study *mediation.Study) {
	fmt.Printf("\n=== %s STUDY ===\n", strings.ToUpper(string(study.Kind)))
	fmt.Printf("Study ID: %s\n", study.ID)
	fmt.Printf("Dataset: %s\n", study.DatasetName)
	fmt.Printf("Tables: %d\n", len(study.Tables))

	for _, named := range study.Tables {
		lo, hi, ok := estimateRange(named.Table)
		if !ok {
			fmt.Printf("  %-32s %4d rows\n", named.Name, named.Table.NumRows())
			continue
		}
		fmt.Printf("  %-32s %4d rows | estimate %.4g .. %.4g\n",
			named.Name, named.Table.NumRows(), lo, hi)
	}
}

func estimateRange(tbl *table.Table) (float64, float64, bool) {
	estimates, err := tbl.Column(table.ColEstimate)
	if err != nil {
		return 0, 0, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range estimates {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, lo <= hi
}

func exportStudy(study *mediation.Study, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	md, err := report.NewBuilder().BuildMarkdown(study)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	base := filepath.Join(outDir, string(study.Kind))
	if err := os.WriteFile(base+".md", []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	if err := os.WriteFile(base+".html", report.RenderHTML(md), 0o644); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}
	if err := excel.NewStudyWriter().WriteStudy(study, base+".xlsx"); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	fmt.Printf("Exports written to %s.{md,html,xlsx}\n", base)
	return nil
}
