package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/query"
)

// snapshotCmd groups the snapshot database commands
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect stored entity snapshots",
}

var snapshotRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List decode runs with stored snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := container.SnapshotStorage()
		if err != nil {
			return err
		}
		runs, err := snaps.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("No runs found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "RUN\tSTARTED\tSNAPSHOTS\tLAST TICK")
		for _, run := range runs {
			ticks, err := snaps.Ticks(run)
			if err != nil {
				return err
			}
			last := "-"
			if len(ticks) > 0 {
				last = strconv.FormatUint(uint64(ticks[len(ticks)-1]), 10)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", run, run.Time().Format(time.RFC3339), len(ticks), last)
		}
		return nil
	},
}

var snapshotTicksCmd = &cobra.Command{
	Use:   "ticks <run>",
	Short: "List the snapshot ticks of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
		snaps, err := container.SnapshotStorage()
		if err != nil {
			return err
		}
		ticks, err := snaps.Ticks(run)
		if err != nil {
			return err
		}
		for _, tick := range ticks {
			cmd.Println(tick)
		}
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <run>",
	Short: "Print the entities of a snapshot",
	Long: `Print the entities of a stored snapshot, by default the latest one of
the run.

Examples:
  replaykit snapshot show 2Dx5Zl7Hqf1lVnEYqkaTmu8qeV9
  replaykit snapshot show 2Dx5Zl7Hqf1lVnEYqkaTmu8qeV9 --tick 1801 --entity 3
  replaykit snapshot show 2Dx5Zl7Hqf1lVnEYqkaTmu8qeV9 --where class=CUnit --where "0<50"
  replaykit snapshot show 2Dx5Zl7Hqf1lVnEYqkaTmu8qeV9 --format json

Conditions compare entity metadata (index, serial, class, class_id,
visible) or a field slot addressed by its path, e.g. 0 or 5/2.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
		snaps, err := container.SnapshotStorage()
		if err != nil {
			return err
		}

		var snap *entity.Snapshot
		if cmd.Flags().Changed("tick") {
			tick, _ := cmd.Flags().GetUint32("tick")
			snap, err = snaps.Get(run, tick)
		} else {
			snap, err = snaps.Latest(run)
		}
		if err != nil {
			return err
		}

		states := snap.Entities
		if where, _ := cmd.Flags().GetStringArray("where"); len(where) > 0 {
			if states, err = filterStates(cmd, snap, where); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("entity") {
			index, _ := cmd.Flags().GetInt32("entity")
			st, ok := snap.Find(index)
			if !ok {
				return fmt.Errorf("entity %d not in snapshot at tick %d", index, snap.Tick)
			}
			states = []entity.State{st}
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return outputSnapshotJSON(cmd, snap.Tick, states)
		}
		return outputSnapshotTable(cmd, snap.Tick, states)
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <run>",
	Short: "Delete every snapshot of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
		snaps, err := container.SnapshotStorage()
		if err != nil {
			return err
		}
		if err := snaps.DeleteRun(run); err != nil {
			return err
		}
		cmd.Printf("Deleted run %s\n", run)
		return nil
	},
}

// filterStates keeps the entities matching every condition.
func filterStates(cmd *cobra.Command, snap *entity.Snapshot, where []string) ([]entity.State, error) {
	queries := make([]query.FieldQuery, 0, len(where))
	for _, expr := range where {
		q, err := query.ParseFieldQuery(expr)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	it, err := query.NewSimpleQueryEngine().ExecuteQuery(cmd.Context(), snap, queries, &query.StateFieldExtractor{})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var states []entity.State
	for it.Next() {
		states = append(states, it.Result().State)
	}
	return states, nil
}

// entityView is the json form of an entity state
type entityView struct {
	Index   int32             `json:"index"`
	Serial  uint32            `json:"serial"`
	Class   string            `json:"class"`
	ClassID int32             `json:"class_id"`
	Visible bool              `json:"visible"`
	Fields  map[string]string `json:"fields"`
}

func outputSnapshotJSON(cmd *cobra.Command, tick uint32, states []entity.State) error {
	out := struct {
		Tick     uint32       `json:"tick"`
		Entities []entityView `json:"entities"`
	}{Tick: tick, Entities: make([]entityView, 0, len(states))}

	for _, st := range states {
		v := entityView{
			Index:   st.Index,
			Serial:  st.Serial,
			Class:   st.Class,
			ClassID: st.ClassID,
			Visible: st.Visible,
			Fields:  make(map[string]string, len(st.Fields)),
		}
		for _, f := range st.Fields {
			v.Fields[f.Path.String()] = f.Value.String()
		}
		out.Entities = append(out.Entities, v)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func outputSnapshotTable(cmd *cobra.Command, tick uint32, states []entity.State) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Tick:\t%d\n", tick)
	fmt.Fprintf(w, "Entities:\t%d\n", len(states))
	for _, st := range states {
		state := "visible"
		if !st.Visible {
			state = "left"
		}
		fmt.Fprintf(w, "\n%d\t%s (class %d, serial %d, %s)\n", st.Index, st.Class, st.ClassID, st.Serial, state)
		for _, f := range st.Fields {
			fmt.Fprintf(w, "  %s\t%s\n", f.Path, f.Value)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotRunsCmd, snapshotTicksCmd, snapshotShowCmd, snapshotDeleteCmd)

	snapshotShowCmd.Flags().Uint32("tick", 0, "Snapshot tick (default: latest)")
	snapshotShowCmd.Flags().Int32("entity", 0, "Only print this entity index")
	snapshotShowCmd.Flags().StringArray("where", nil, "Only print entities matching this condition (repeatable)")
	snapshotShowCmd.Flags().String("format", "table", "Output format (table, json)")
}
