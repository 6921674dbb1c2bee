package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/ssargent/replaykit/pkg/runner"
	"github.com/ssargent/replaykit/pkg/schema"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <log>...",
	Short: "Decode message logs and store entity snapshots",
	Long: `Decode one or more message logs concurrently. Entity snapshots are
stored every snapshot interval and after the last message; the run ids
printed at the end select them in the snapshot commands.

Examples:
  replaykit decode match.log
  replaykit decode a.log b.log c.log --workers 2 --metrics
  replaykit decode bare.log --schema bare.yaml --cpuprofile ./prof`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		flags := cmd.Flags()
		if flags.Changed("workers") {
			cfg.Decoder.Workers, _ = flags.GetInt("workers")
		}
		if flags.Changed("snapshot-interval") {
			cfg.Decoder.SnapshotInterval, _ = flags.GetUint32("snapshot-interval")
		}
		if flags.Changed("skip-full-packets") {
			cfg.Decoder.SkipFullPackets, _ = flags.GetBool("skip-full-packets")
		}
		if flags.Changed("metrics") {
			cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
		}
		if flags.Changed("metrics-addr") {
			cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
			cfg.Metrics.Enabled = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if dir, _ := flags.GetString("cpuprofile"); dir != "" {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.NoShutdownHook).Stop()
		}

		schemaPath, _ := flags.GetString("schema")
		paths := make([]string, len(args))
		for i, a := range args {
			paths[i] = logPath(a)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDecode(ctx, cmd, paths, schemaPath)
	},
}

func runDecode(ctx context.Context, cmd *cobra.Command, paths []string, schemaPath string) error {
	var recs *schema.Records
	if schemaPath != "" {
		var err error
		if recs, err = schema.LoadRecords(schemaPath); err != nil {
			return err
		}
	}

	r, err := container.NewRunner(recs)
	if err != nil {
		return err
	}

	srvErr := make(chan error, 1)
	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if container.Config().Metrics.Enabled {
		srv := container.NewServer(r)
		go func() { srvErr <- srv.ListenAndServe(srvCtx) }()
	} else {
		srvErr <- nil
	}

	results, runErr := r.RunAll(ctx, paths)
	printResults(cmd, results)

	stopServer()
	if err := <-srvErr; err != nil {
		container.Logger().Warn("metrics server stopped", "error", err)
	}
	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("decode interrupted: %w", runErr)
	}
	return runErr
}

func printResults(cmd *cobra.Command, results []*runner.Result) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "REPLAY\tRUN\tMESSAGES\tTICK\tCLASSES\tENTITIES\tSNAPSHOTS\tELAPSED")
	for _, res := range results {
		if res == nil {
			continue
		}
		entities := "-"
		if res.Final != nil {
			entities = fmt.Sprint(len(res.Final.Entities))
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%d\t%s\n",
			res.Name, res.RunID, res.Messages, res.Tick, res.Classes, entities, res.Snapshots, res.Elapsed.Round(time.Millisecond))
	}
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().String("schema", "", "Yaml schema applied before each log (for logs without schema messages)")
	decodeCmd.Flags().Int("workers", 4, "Number of logs decoded at once")
	decodeCmd.Flags().Uint32("snapshot-interval", 1800, "Ticks between stored snapshots (0 stores only the final one)")
	decodeCmd.Flags().Bool("skip-full-packets", false, "Ignore full packets after the first one")
	decodeCmd.Flags().Bool("metrics", false, "Serve metrics and replay status while decoding")
	decodeCmd.Flags().String("metrics-addr", "", "Metrics listen address (implies --metrics)")
	decodeCmd.Flags().String("cpuprofile", "", "Write a CPU profile to this directory")
}
