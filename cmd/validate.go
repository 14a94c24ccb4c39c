package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pares/internal/ingest"
	"github.com/papapumpkin/pares/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [input-dir]",
	Short: "Check the catalog and the input tables without running the analysis",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		ok := true

		catalogName := "built-in catalog"
		if s.cfg.ScenariosFile != "" {
			catalogName = s.cfg.ScenariosFile
		}
		problems := s.cat.Problems()
		s.printer.Problems(catalogName, problems)
		ok = ok && len(problems) == 0

		ctx, cancel := signalContext()
		defer cancel()
		reg := s.cat.NewRegistry()
		ingestDiags, err := ingest.LoadDir(ctx, s.cfg.InputDir, reg)
		if err != nil {
			s.printer.Problems(s.cfg.InputDir, []error{err})
			os.Exit(1)
		}
		schemaErrs, _ := pipeline.Check(reg)
		s.printer.Problems(fmt.Sprintf("%s (%d tables)", s.cfg.InputDir, len(reg.Names())), schemaErrs)
		s.printer.Diagnostics(ingestDiags, 0)
		ok = ok && len(schemaErrs) == 0

		if !ok {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
