package cmd

import (
	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the weight scenarios of the active catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, nil)
		if err != nil {
			return err
		}
		s.printer.Scenarios(s.cat)
		if errs := s.cat.Problems(); len(errs) > 0 {
			s.printer.Problems("catalog", errs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
