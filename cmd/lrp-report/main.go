// Command lrp-report computes consumptive use for one or all accounting
// units, writes the per-unit consumptive-use CSVs, and prints the quarterly
// statement of each agreement for a water year. Statements can optionally be
// published to Kafka.
//
// Usage:
//
//	go run ./cmd/lrp-report -water-year 2025 -quarter Q2
//	go run ./cmd/lrp-report -unit LRP-001 -water-year 2025 -quarter Q4 -publish
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	"github.com/mmaneta/eki-lpr-update/internal/adapter/csvstore"
	kafkaadapter "github.com/mmaneta/eki-lpr-update/internal/adapter/kafka"
	"github.com/mmaneta/eki-lpr-update/internal/config"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
	"github.com/mmaneta/eki-lpr-update/internal/pipeline"
)

const publishAttempts = 3

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	unit := flag.String("unit", "", "accounting unit to process; empty processes every unit")
	waterYear := flag.Int("water-year", 0, "water year of the statements; 0 skips statements")
	quarterFlag := flag.String("quarter", "Q4", "quarter of the statements (Q1..Q4)")
	outDir := flag.String("out", "", "output directory for consumptive-use CSVs (default LRP_OUTPUT_DIR)")
	publish := flag.Bool("publish", false, "publish statements to Kafka")
	flag.Parse()

	quarter, err := domain.ParseQuarter(*quarterFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tag, _, err := cfg.DatasetTags()
	if err != nil {
		return err
	}
	builder, err := csvstore.LoadSeriesBuilder(cfg.PrecipFile, cfg.ETFile, cfg.FieldKeyFile, tag.KeyFilter())
	if err != nil {
		return err
	}

	p := pipeline.New(builder, cfg.Soil, cfg.Workers, logger, metrics)

	results, err := p.CalculateConsumptiveUse(ctx, *unit)
	if err != nil {
		return fmt.Errorf("calculate consumptive use: %w", err)
	}

	writer, err := csvstore.NewResultWriter(cfg.OutputDir, tag)
	if err != nil {
		return err
	}
	paths, err := p.WriteResults(results, writer)
	if err != nil {
		return err
	}
	logger.Info("consumptive use written", "files", len(paths), "dir", cfg.OutputDir)

	if *waterYear == 0 {
		return nil
	}

	agreements, err := config.LoadAgreements(cfg.AgreementsFile)
	if err != nil {
		return err
	}
	selected, err := selectAgreements(agreements, results, *unit)
	if err != nil {
		return err
	}

	statements := make([]domain.Statement, 0, len(selected))
	for _, a := range selected {
		st, err := p.Statement(ctx, a, *waterYear, quarter)
		if err != nil {
			return fmt.Errorf("statement %s: %w", a.Number, err)
		}
		printStatement(os.Stdout, st)
		statements = append(statements, st)
	}

	if !*publish {
		return nil
	}
	if !cfg.KafkaEnabled {
		return fmt.Errorf("-publish requires KAFKA_ENABLED=true")
	}
	kw := kafkaadapter.NewWriter(cfg, logger)
	defer func() {
		if err := kw.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()
	return p.Publish(ctx, kw, statements, publishAttempts)
}

// selectAgreements returns the agreements of the computed units in unit
// order. A requested unit without an agreement is an error; other units
// without one are skipped.
func selectAgreements(agreements map[string]domain.Agreement, results map[string]domain.PartitionSeries, unit string) ([]domain.Agreement, error) {
	if unit != "" {
		a, ok := agreements[unit]
		if !ok {
			return nil, fmt.Errorf("no agreement for unit %s", unit)
		}
		return []domain.Agreement{a}, nil
	}

	units := make([]string, 0, len(results))
	for u := range results {
		if _, ok := agreements[u]; ok {
			units = append(units, u)
		}
	}
	slices.Sort(units)

	out := make([]domain.Agreement, 0, len(units))
	for _, u := range units {
		out = append(out, agreements[u])
	}
	return out, nil
}

func printStatement(w io.Writer, st domain.Statement) {
	a := st.Agreement
	fmt.Fprintf(w, "\nAgreement %s  %s\n", a.Number, a.ParticipantName)
	fmt.Fprintf(w, "Water year %d through %s (%s)  area %.2f ac\n\n",
		st.WaterYear, st.Quarter, st.PeriodEnd.Format("2006-01-02"), st.Summary.AreaAcres)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Quarter\tMonths\tET (in)\tPrecip (in)\tEff. precip (in)\tCU precip (in)\tCU applied (in)\tCU applied (AF)\tCumulative (AF)\t")
	for _, q := range st.Summary.Quarters {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			q.Quarter, q.Quarter.Months(), q.ET, q.Precip, q.EffectivePrecip,
			q.CUFromPrecip, q.CUFromAppliedWater, q.CUFromAppliedWaterAF, q.CumulativeAF)
	}
	t := st.Summary.Total
	fmt.Fprintf(tw, "Total\t\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
		t.ET, t.Precip, t.EffectivePrecip, t.CUFromPrecip, t.CUFromAppliedWater, t.CUFromAppliedWaterAF, t.CumulativeAF)
	tw.Flush() //nolint:errcheck // stdout

	verdict := "COMPLIANT"
	if !st.Compliant {
		verdict = "NOT COMPLIANT"
	}
	fmt.Fprintf(w, "\nCumulative applied water %.2f AF vs maximum %.2f AF: %s\n",
		t.CumulativeAF, a.MaxConsumptiveUseAF, verdict)
}
