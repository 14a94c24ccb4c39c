package cmd

import (
	"github.com/spf13/pflag"
)

// addRunFlags registers the flags that tune a run and binds them to their
// config keys. They are persistent on the root command so run and watch
// share one binding per key.
func addRunFlags(f *pflag.FlagSet) {
	f.String("output-db", "", "SQLite database to store the run in")
	f.String("events", "", "JSONL file to append telemetry events to")
	f.Int("top-n", 10, "ranking depth for tables and stability")
	f.Float64("half-life-days", 180, "conflict recency half-life in days")
	f.String("as-of", "", "reference date for conflict decay (default: latest event)")
	f.Bool("power-weighted", false, "weight network strength by actor power")
	f.Bool("inclusiveness", false, "scale dialogue coverage by actor-type diversity")
	f.Bool("parallel", true, "run independent stages concurrently")
	bindFlags(map[string]string{
		"output_db":      "output-db",
		"events_file":    "events",
		"top_n":          "top-n",
		"half_life_days": "half-life-days",
		"as_of":          "as-of",
		"power_weighted": "power-weighted",
		"inclusiveness":  "inclusiveness",
		"parallel":       "parallel",
	}, f.Lookup)
}
