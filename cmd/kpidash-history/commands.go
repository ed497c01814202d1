package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"kpidash/internal/backend"
	"kpidash/internal/config"
	"kpidash/internal/core"
	"kpidash/internal/format"
	"kpidash/internal/ingest"
	"kpidash/internal/log"
	"kpidash/internal/report"
	"kpidash/internal/storage"
)

var args struct {
	dbPath       string
	label        string
	seed         uint64
	preferences  string
	granularity  string
	retention    int
	frequency    int
	notification string
}

func newRootCmd() *cobra.Command {
	app := config.Load()

	root := &cobra.Command{
		Use:           "kpidash-history",
		Short:         "Manage the recorded KPI totals used as baselines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&args.dbPath, "db", app.HistoryDBPath, "history database path")

	record := &cobra.Command{
		Use:   "record <csv>",
		Short: "Sum each metric of a CSV file and store the totals under a label",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecord,
	}
	record.Flags().StringVar(&args.label, "label", "", "period label, e.g. 2025-Q1")
	_ = record.MarkFlagRequired("label")

	labels := &cobra.Command{
		Use:   "labels",
		Short: "List recorded labels, most recent first",
		Args:  cobra.NoArgs,
		RunE:  runLabels,
	}

	show := &cobra.Command{
		Use:   "show <label>",
		Short: "Print the totals recorded under a label",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	summary := &cobra.Command{
		Use:   "summary <csv>",
		Short: "Print the KPI table of a CSV file against the recorded baselines",
		Args:  cobra.ExactArgs(1),
		RunE:  runSummary,
	}
	summary.Flags().StringVar(&args.label, "label", app.HistoryLabel, "compare against this label (default: latest per metric)")
	summary.Flags().Uint64Var(&args.seed, "seed", app.RandomSeed, "seed for metrics with no recorded baseline")
	summary.Flags().StringVar(&args.preferences, "preferences", app.PreferencesFile, "dashboard preferences file")

	defaults := &cobra.Command{
		Use:   "defaults",
		Short: "Show or change the dashboard defaults new sessions start with",
		Args:  cobra.NoArgs,
		RunE:  runDefaults,
	}
	defaults.Flags().StringVar(&args.preferences, "preferences", app.PreferencesFile, "dashboard preferences file")
	defaults.Flags().StringVar(&args.granularity, "granularity", "", "Monthly, Quarterly or Yearly")
	defaults.Flags().IntVar(&args.retention, "retention-months", 0, "retention period in months (1-12)")
	defaults.Flags().IntVar(&args.frequency, "report-frequency-days", 0, "report frequency in days (1-30)")
	defaults.Flags().StringVar(&args.notification, "notification", "", "Email, SMS or None")

	root.AddCommand(record, labels, show, summary, defaults)
	return root
}

func openHistory() (*storage.HistoryRepository, error) {
	repo, err := storage.NewHistoryRepository(args.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", args.dbPath, err)
	}
	return repo, nil
}

func readDataset(path string) (core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Dataset{}, err
	}
	defer f.Close()
	ds, err := ingest.ParseCSV(f, path)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

func runRecord(cmd *cobra.Command, argv []string) error {
	ds, err := readDataset(argv[0])
	if err != nil {
		return err
	}
	totals := make(map[string]decimal.Decimal, len(ds.Metrics))
	for _, m := range ds.Metrics {
		col, err := ds.Column(m)
		if err != nil {
			return err
		}
		if totals[m], err = core.Total(col); err != nil {
			return fmt.Errorf("total %s: %w", m, err)
		}
	}

	repo, err := openHistory()
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RecordTotals(cmd.Context(), args.label, totals); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d metrics under %q\n", len(totals), args.label)
	return nil
}

func runLabels(cmd *cobra.Command, _ []string) error {
	repo, err := openHistory()
	if err != nil {
		return err
	}
	defer repo.Close()

	labels, err := repo.Labels(cmd.Context())
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No totals recorded")
		return nil
	}
	for _, l := range labels {
		fmt.Fprintln(cmd.OutOrStdout(), l)
	}
	return nil
}

func runShow(cmd *cobra.Command, argv []string) error {
	repo, err := openHistory()
	if err != nil {
		return err
	}
	defer repo.Close()

	totals, err := repo.TotalsForLabel(cmd.Context(), argv[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Metric\tTotal\tRecorded")
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Metric, format.Currency(t.Total), t.RecordedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runSummary(cmd *cobra.Command, argv []string) error {
	ds, err := readDataset(argv[0])
	if err != nil {
		return err
	}
	settings, err := config.LoadPreferences(args.preferences)
	if err != nil {
		return err
	}

	res, err := backend.NewFactory(log.FromContext(cmd.Context())).Create(cmd.Context(), backend.Config{
		Source:        backend.FileSource,
		DatasetPath:   argv[0],
		Baseline:      backend.HistoryBaseline,
		HistoryDBPath: args.dbPath,
		HistoryLabel:  args.label,
		RandomSeed:    args.seed,
	})
	if err != nil {
		return err
	}
	defer res.Close()

	calc, err := res.NewCalculator()
	if err != nil {
		return err
	}
	r, err := report.NewBuilder(calc).Build(cmd.Context(), ds, settings)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), r.Text())
	return nil
}

func runDefaults(cmd *cobra.Command, _ []string) error {
	settings, err := config.LoadPreferences(args.preferences)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	changed := false
	if flags.Changed("granularity") {
		if settings.Granularity, err = core.ParseGranularity(args.granularity); err != nil {
			return err
		}
		changed = true
	}
	if flags.Changed("retention-months") {
		settings.RetentionMonths = args.retention
		changed = true
	}
	if flags.Changed("report-frequency-days") {
		settings.ReportFrequencyDays = args.frequency
		changed = true
	}
	if flags.Changed("notification") {
		if settings.Notification, err = core.ParseNotificationPreference(args.notification); err != nil {
			return err
		}
		changed = true
	}

	out := cmd.OutOrStdout()
	if changed {
		path, err := config.SavePreferences(args.preferences, settings)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s\n", path)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Granularity\t%s\n", settings.Granularity)
	fmt.Fprintf(tw, "Retention months\t%d\n", settings.RetentionMonths)
	fmt.Fprintf(tw, "Report frequency days\t%d\n", settings.ReportFrequencyDays)
	fmt.Fprintf(tw, "Notification\t%s\n", settings.Notification)
	return tw.Flush()
}
