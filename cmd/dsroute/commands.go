package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/dsroute/internal/notify"
	"github.com/alexanderjulianmartinez/dsroute/internal/router"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

func (a *app) withRouter(cmd *cobra.Command, fn func(ctx context.Context, r *router.Router) error, observers ...router.Observer) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, a.cfg, a.log, observers...)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.log.Warn("close backends", zap.Error(err))
		}
	}()
	return fn(ctx, s.router)
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			fmt.Fprintln(a.out, "Loaded config successfully")
			fmt.Fprintf(a.out, "Tabular backend: %s\n", cfg.Tabular.Type)
			fmt.Fprintf(a.out, "Files backend: %s\n", cfg.Files.Type)
			if cfg.UsesODP() {
				fmt.Fprintf(a.out, "ODP API: %s\n", cfg.ODP.BaseURL)
			}
			if len(cfg.Events.Brokers) > 0 {
				fmt.Fprintf(a.out, "Events: kafka topic %s (%d brokers)\n", cfg.Events.Topic, len(cfg.Events.Brokers))
			} else {
				fmt.Fprintln(a.out, "Events: disabled")
			}
			return nil
		},
	}
}

func newProbeCmd(a *app) *cobra.Command {
	var (
		refresh bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "probe <handle>...",
		Short: "Classify one or more datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRouter(cmd, func(ctx context.Context, r *router.Router) error {
				out := r.ProbeAll(ctx, args, refresh, a.cfg.Router.Concurrency)
				if asJSON {
					if err := writeJSON(a.out, probeOutcomes(out)); err != nil {
						return err
					}
				} else {
					printOutcomes(a.out, out)
				}
				failed := 0
				for _, o := range out {
					if o.Err != nil {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d probes failed", failed, len(out))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "watch <handle>...",
		Short: "Re-probe datasets periodically and print changes as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			return a.withRouter(cmd, func(ctx context.Context, r *router.Router) error {
				return watch(ctx, r, args, interval, count, a.cfg.Router.Concurrency, a.log)
			}, notify.NewJSONLines(a.out))
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "time between probes")
	cmd.Flags().IntVar(&count, "count", 0, "number of refresh rounds, 0 runs until interrupted")
	return cmd
}

func watch(ctx context.Context, r *router.Router, handles []string, interval time.Duration, count, limit int, log *zap.Logger) error {
	round := func(force bool) {
		for _, o := range r.ProbeAll(ctx, handles, force, limit) {
			if o.Err != nil && !errors.Is(o.Err, router.ErrCanceled) {
				log.Warn("probe failed", zap.String("handle", o.Handle), zap.Error(o.Err))
			}
		}
	}
	round(false)

	t := time.NewTicker(interval)
	defer t.Stop()
	for i := 0; count == 0 || i < count; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			round(true)
		}
	}
	return nil
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <handle>",
		Short: "Show how a dataset can be accessed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRouter(cmd, func(ctx context.Context, r *router.Router) error {
				acc, err := r.ResolveAccessor(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: %s\n", acc.Handle(), acc.Modality())
				switch acc := acc.(type) {
				case *router.TabularAccessor:
					if n, ok := acc.RowCountEstimate(); ok {
						fmt.Fprintf(a.out, "rows (estimate): %d\n", n)
					}
					printSchema(a.out, acc.Schema())
				case *router.FileAccessor:
					files, err := acc.Files(ctx)
					if err != nil {
						return err
					}
					printFiles(a.out, files)
				}
				return nil
			})
		},
	}
}

func fileAccessor(ctx context.Context, r *router.Router, handle string) (*router.FileAccessor, error) {
	acc, err := r.ResolveAccessor(ctx, handle)
	if err != nil {
		return nil, err
	}
	fa, ok := acc.(*router.FileAccessor)
	if !ok {
		return nil, fmt.Errorf("dataset %s is %s, not file based", acc.Handle(), acc.Modality())
	}
	return fa, nil
}

func tabularAccessor(ctx context.Context, r *router.Router, handle string) (*router.TabularAccessor, error) {
	acc, err := r.ResolveAccessor(ctx, handle)
	if err != nil {
		return nil, err
	}
	ta, ok := acc.(*router.TabularAccessor)
	if !ok {
		return nil, fmt.Errorf("dataset %s is %s, not tabular", acc.Handle(), acc.Modality())
	}
	return ta, nil
}

func newFilesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "files <handle>",
		Short: "List the files of a file based dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRouter(cmd, func(ctx context.Context, r *router.Router) error {
				fa, err := fileAccessor(ctx, r, args[0])
				if err != nil {
					return err
				}
				files, err := fa.Files(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(a.out, files)
				}
				printFiles(a.out, files)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print files as JSON")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <handle> <file>",
		Short: "Download one file of a file based dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRouter(cmd, func(ctx context.Context, r *router.Router) error {
				fa, err := fileAccessor(ctx, r, args[0])
				if err != nil {
					return err
				}
				if output == "-" {
					_, err := fa.Download(ctx, args[1], a.out)
					return err
				}
				target := output
				if target == "" {
					target = path.Base(args[1])
				}
				return downloadTo(ctx, fa, args[1], target, a.err)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path, - for stdout (default: file base name)")
	return cmd
}

func downloadTo(ctx context.Context, fa *router.FileAccessor, name, target string, status io.Writer) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	n, err := fa.Download(ctx, name, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", target, cerr)
	}
	if err != nil {
		_ = os.Remove(target)
		return err
	}
	fmt.Fprintf(status, "wrote %d bytes to %s\n", n, target)
	return nil
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		columns []string
		where   []string
		orderBy []string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "query <handle>",
		Short: "Read rows from a tabular dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(where)
			if err != nil {
				return err
			}
			return a.withRouter(cmd, func(ctx context.Context, r *router.Router) error {
				ta, err := tabularAccessor(ctx, r, args[0])
				if err != nil {
					return err
				}
				rows, err := ta.Query(ctx, types.Query{Columns: columns, Filters: filters, OrderBy: orderBy, Limit: limit})
				if err != nil {
					return err
				}
				return printRows(a.out, rows, asJSON)
			})
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to return (default: all)")
	cmd.Flags().StringArrayVar(&where, "where", nil, `filter such as "value>=2.5", repeatable`)
	cmd.Flags().StringSliceVar(&orderBy, "order-by", nil, "sort columns, prefix with - for descending")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

func newAggregateCmd(a *app) *cobra.Command {
	var (
		groupBy []string
		aggs    []string
		where   []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "aggregate <handle>",
		Short: "Aggregate a tabular dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(where)
			if err != nil {
				return err
			}
			aggregations, err := parseAggregations(aggs)
			if err != nil {
				return err
			}
			return a.withRouter(cmd, func(ctx context.Context, r *router.Router) error {
				ta, err := tabularAccessor(ctx, r, args[0])
				if err != nil {
					return err
				}
				rows, err := ta.Aggregate(ctx, types.AggregateRequest{GroupBy: groupBy, Aggregations: aggregations, Filters: filters})
				if err != nil {
					return err
				}
				return printRows(a.out, rows, asJSON)
			})
		},
	}
	cmd.Flags().StringSliceVar(&groupBy, "group-by", nil, "grouping columns")
	cmd.Flags().StringArrayVar(&aggs, "agg", nil, `aggregation as column:func, e.g. "value:avg" or "count"`)
	cmd.Flags().StringArrayVar(&where, "where", nil, "filter, repeatable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	_ = cmd.MarkFlagRequired("agg")
	return cmd
}
