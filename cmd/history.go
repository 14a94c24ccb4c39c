package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pares/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs stored in the output database",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		runs, err := st.Runs(cmd.Context())
		if err != nil {
			return err
		}
		s.printer.Runs(runs)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id> [table]",
	Short: "Print a stored run's tables or one of them",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		runID := args[0]
		limit, _ := cmd.Flags().GetInt("limit")

		if len(args) == 2 {
			t, err := st.LoadTable(ctx, runID, args[1])
			if err != nil {
				return err
			}
			s.printer.Table(t, limit)
			return nil
		}

		names, err := st.TableNames(ctx, runID)
		if err != nil {
			return err
		}
		for _, name := range names {
			t, err := st.LoadTable(ctx, runID, name)
			if err != nil {
				return err
			}
			s.printer.Table(t, limit)
		}
		ds, err := st.Diagnostics(ctx, runID)
		if err != nil {
			return err
		}
		s.printer.Diagnostics(ds, limit)
		return nil
	},
}

func init() {
	showCmd.Flags().Int("limit", 20, "rows to print per table (0 for all)")
	rootCmd.AddCommand(runsCmd, showCmd)
}

func openStore(cmd *cobra.Command) (*session, *store.Store, error) {
	s, err := newSession(cmd, nil)
	if err != nil {
		return nil, nil, err
	}
	if s.cfg.OutputDB == "" {
		return nil, nil, fmt.Errorf("no output database: set --output-db or output_db")
	}
	st, err := store.Open(cmd.Context(), s.cfg.OutputDB)
	if err != nil {
		return nil, nil, err
	}
	return s, st, nil
}
