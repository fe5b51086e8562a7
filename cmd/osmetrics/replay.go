package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/taxonomy"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

var (
	replayFrom  string
	replayTo    string
	replayWrite bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <archive-dir>",
	Short: "Rebuild records from archived deliveries",
	Long: `Read archived deliveries laid out as
  <archive-dir>/<event-kind>/<yyyy-mm-dd>/*.json
for every recognized kind and every day from --from to --to, build the
records of each day as one batch dated that day and print them. With --write
the records and activity documents are stored in the configured store
instead. Stored counts include each delivery once, so replaying a range
again changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd.Context(), cmd, args[0])
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "First day, yyyy-mm-dd (default yesterday)")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "Last day, yyyy-mm-dd (default today)")
	replayCmd.Flags().BoolVar(&replayWrite, "write", false, "Store records instead of printing them")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(ctx context.Context, cmd *cobra.Command, root string) error {
	log := logger.Get().Named("replay")
	from, to, err := replayRange(time.Now().UTC(), replayFrom, replayTo)
	if err != nil {
		return err
	}

	days, skipped, err := readArchive(ctx, root, from, to)
	if err != nil {
		return err
	}
	events := 0
	for _, d := range days {
		events += len(d.Events)
	}
	log.Info(ctx, "archive read",
		logger.Int("events", events),
		logger.Int("skipped", skipped),
		logger.String("from", from.Format(model.DateLayout)),
		logger.String("to", to.Format(model.DateLayout)),
	)

	if replayWrite {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		svc, err := newService(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Stop(ctx) }()

		var written, failed int
		for _, d := range days {
			n, failures, err := svc.IngestBatch(ctx, d.Events, d.Day)
			reportFailures(ctx, log, failures)
			if err != nil {
				return fmt.Errorf("write records of %s: %w", d.Day.Format(model.DateLayout), err)
			}
			written += n
			failed += len(failures)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records from %d events (%d failed)\n", written, events, failed)
		return nil
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	b := builder.New(builderConfig(cfg))
	var recs []model.Record
	for _, d := range days {
		batch := b.BuildBatch(d.Events, d.Day)
		reportFailures(ctx, log, batch.Failures)
		recs = append(recs, batch.Records...)
	}
	return render(cmd.OutOrStdout(), output, recs, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "KIND\tID\tREPOSITORY\tDATE")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Kind, r.ID(), r.Repository(), r.Date().Format(model.DateLayout))
		}
	})
}

func reportFailures(ctx context.Context, log logger.Logger, failures []builder.Failure) {
	for _, f := range failures {
		log.Warn(ctx, "event not built",
			logger.Int("index", f.Index),
			logger.String("delivery", f.DeliveryID),
			logger.Error(f.Err),
		)
	}
}

// replayRange resolves --from and --to; from defaults to yesterday and to
// defaults to today.
func replayRange(now time.Time, fromFlag, toFlag string) (time.Time, time.Time, error) {
	today := now.UTC().Truncate(builder.Day)
	from, to := today.Add(-builder.Day), today
	var err error
	if fromFlag != "" {
		if from, err = time.Parse(model.DateLayout, fromFlag); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: %w", fromFlag, err)
		}
	}
	if toFlag != "" {
		if to, err = time.Parse(model.DateLayout, toFlag); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: %w", toFlag, err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to.Format(model.DateLayout), from.Format(model.DateLayout))
	}
	return from, to, nil
}

// archiveDay holds the deliveries archived for one day.
type archiveDay struct {
	Day    time.Time
	Events []model.SourceEvent
}

// readArchive loads every archived delivery in range, one entry per day
// with deliveries. Kinds are read concurrently; within a day events keep
// taxonomy order, then file name. Files that do not parse are logged and
// skipped.
func readArchive(ctx context.Context, root string, from, to time.Time) ([]archiveDay, int, error) {
	if info, err := os.Stat(root); err != nil {
		return nil, 0, fmt.Errorf("archive: %w", err)
	} else if !info.IsDir() {
		return nil, 0, fmt.Errorf("archive: %s is not a directory", root)
	}

	var days []time.Time
	for day := from; !day.After(to); day = day.Add(builder.Day) {
		days = append(days, day)
	}
	kinds := taxonomy.All()
	// perKind[k][d] holds kind k's events of day d.
	perKind := make([][][]model.SourceEvent, len(kinds))
	skipped := make([]int, len(kinds))

	g, ctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		perKind[i] = make([][]model.SourceEvent, len(days))
		g.Go(func() error {
			for d, day := range days {
				if err := ctx.Err(); err != nil {
					return err
				}
				dir := filepath.Join(root, k.String(), day.Format(model.DateLayout))
				evs, n, err := readDay(ctx, dir)
				if err != nil {
					return err
				}
				perKind[i][d] = evs
				skipped[i] += n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var (
		out   []archiveDay
		total int
	)
	for i := range kinds {
		total += skipped[i]
	}
	for d, day := range days {
		var evs []model.SourceEvent
		for i := range kinds {
			evs = append(evs, perKind[i][d]...)
		}
		if len(evs) > 0 {
			out = append(out, archiveDay{Day: day, Events: evs})
		}
	}
	return out, total, nil
}

func readDay(ctx context.Context, dir string) ([]model.SourceEvent, int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", dir, err)
	}
	var (
		out     []model.SourceEvent
		skipped int
	)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", path, err)
		}
		ev, err := model.ParseArchived(body)
		if err != nil {
			logger.Get().Warn(ctx, "skipping archived delivery", logger.String("path", path), logger.Error(err))
			skipped++
			continue
		}
		out = append(out, ev)
	}
	return out, skipped, nil
}
