package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pares",
	Short: "Territorial planning analytics over tidy survey tables",
	Long: `Pares reads the tidy CSV tables of a participatory territorial diagnosis,
joins them to the geographic dimension and computes the action priority
index, actor network strength, dialogue coverage, conflict risk and the
feasibility tiers of every group.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default .pares.yaml)")
	pf.BoolP("verbose", "v", false, "verbose output")
	pf.StringP("input", "i", "", "directory holding the input CSV tables")
	pf.String("scenarios", "", "catalog TOML file with scenarios, aliases and indicators")
	pf.Bool("strict", false, "fail on missing required tables or columns")
	bindFlags(map[string]string{
		"verbose":        "verbose",
		"input_dir":      "input",
		"scenarios_file": "scenarios",
		"strict":         "strict",
	}, pf.Lookup)
	addRunFlags(pf)
}

// bindFlags binds config keys to the named flags.
func bindFlags(keys map[string]string, lookup func(string) *pflag.Flag) {
	for key, flag := range keys {
		if f := lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".pares")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("PARES")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}
