package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/schema"
	"github.com/ssargent/replaykit/pkg/synth"
)

// synthCmd represents the synth command
var synthCmd = &cobra.Command{
	Use:   "synth <log>",
	Short: "Write a synthetic message log",
	Long: `Generate a deterministic replay of team and unit entities and write it
as a message log. A relative log path is placed in the log directory.

Examples:
  replaykit synth match.log --ticks 3000 --units 64
  replaykit synth bare.log --no-schema --schema-out bare.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := synth.DefaultOptions()
		opts.Seed, _ = cmd.Flags().GetInt64("seed")
		opts.Ticks, _ = cmd.Flags().GetInt("ticks")
		opts.Units, _ = cmd.Flags().GetInt("units")
		noSchema, _ := cmd.Flags().GetBool("no-schema")
		schemaOut, _ := cmd.Flags().GetString("schema-out")
		return runSynth(cmd, logPath(args[0]), opts, noSchema, schemaOut)
	},
}

// logPath resolves bare log names against the configured log directory.
func logPath(name string) string {
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name
	}
	return filepath.Join(container.Config().LogDir(), name)
}

func runSynth(cmd *cobra.Command, path string, opts synth.Options, noSchema bool, schemaOut string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	w, err := container.NewLogWriter(path)
	if err != nil {
		return err
	}

	err = synth.Generate(opts, func(m *engine.Message) error {
		if noSchema && (m.Kind == engine.KindSerializers || m.Kind == engine.KindClassInfo) {
			return nil
		}
		_, err := w.Append(m)
		return err
	})
	if err != nil {
		w.Close()
		return err
	}
	count, size := w.Count(), w.Size()
	if err := w.Close(); err != nil {
		return err
	}

	if schemaOut != "" {
		data, err := schema.MarshalRecords(synth.Records())
		if err != nil {
			return err
		}
		if err := os.WriteFile(schemaOut, data, 0600); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
	}

	cmd.Printf("Wrote %d messages (%d bytes) to %s\n", count, size, path)
	return nil
}

func init() {
	rootCmd.AddCommand(synthCmd)
	defaults := synth.DefaultOptions()
	synthCmd.Flags().Int64("seed", defaults.Seed, "Random seed")
	synthCmd.Flags().Int("ticks", defaults.Ticks, "Number of entity packets")
	synthCmd.Flags().Int("units", defaults.Units, "Maximum number of live units")
	synthCmd.Flags().Bool("no-schema", false, "Leave serializer and class messages out of the log")
	synthCmd.Flags().String("schema-out", "", "Also write the schema as a yaml file")
}
