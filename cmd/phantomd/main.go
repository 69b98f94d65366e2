// Command phantomd is the daemon process: one per repository, holding
// the terminal multiplexer, analysis runner, scheduler, and command
// surface described in spec.md. Grounded on the teacher's cmd/wt daemon
// subcommand and cmd/wtd/main.go's standalone-server shape, collapsed
// into a single dedicated binary since phantom's daemon has no
// multi-tenant relay counterpart.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcweave/phantom/internal/config"
	"github.com/arcweave/phantom/internal/daemon"
)

func main() {
	root := &cobra.Command{
		Use:   "phantomd",
		Short: "phantom daemon — terminal multiplexer and analysis engine for one repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemon.Run(cfg)
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
