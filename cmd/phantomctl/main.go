// Command phantomctl is the CLI front-end to a running phantomd: branch
// listing, triggering analyses, and reading/writing settings over the
// unix-socket command surface. Grounded on the teacher's cmd/wt/main.go
// cobra command tree and transport.Client usage pattern.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/arcweave/phantom/internal/config"
	"github.com/arcweave/phantom/internal/ipc"
)

func clientFromConfig() (*ipc.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return ipc.NewClient(cfg.SocketPath()), nil
}

func main() {
	root := &cobra.Command{
		Use:   "phantomctl",
		Short: "control a running phantom daemon",
	}
	root.AddCommand(branchesCmd(), analysisCmd(), settingCmd(), terminalCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func branchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branches",
		Short: "List local branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			branches, err := c.ListBranches(context.Background())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOMMIT\tCURRENT")
			for _, b := range branches {
				current := ""
				if b.IsCurrent {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", b.Name, b.CommitSHA, current)
			}
			return w.Flush()
		},
	}
	return cmd
}

func analysisCmd() *cobra.Command {
	top := &cobra.Command{Use: "analysis", Short: "Trigger and inspect analyses"}

	var branch, binary, model string
	var presetID int64
	var level int
	run := &cobra.Command{
		Use:   "run",
		Short: "Trigger an analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			id, err := c.RunAnalysis(cmd.Context(), ipc.RunAnalysisParams{
				PresetID:  presetID,
				Branch:    branch,
				Level:     level,
				CLIBinary: binary,
				Model:     model,
			})
			if err != nil {
				return err
			}
			fmt.Printf("queued analysis %d\n", id)
			return nil
		},
	}
	run.Flags().Int64Var(&presetID, "preset", 0, "analysis preset ID")
	run.Flags().StringVar(&branch, "branch", "", "branch to analyze")
	run.Flags().IntVar(&level, "level", 1, "structural graph level (1-3)")
	run.Flags().StringVar(&binary, "cli", "claude", "CLI binary to invoke")
	run.Flags().StringVar(&model, "model", "", "model override")
	run.MarkFlagRequired("preset")
	run.MarkFlagRequired("branch")

	list := &cobra.Command{
		Use:   "list",
		Short: "List analyses for a branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			analyses, err := c.ListAnalyses(cmd.Context(), branch)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPRESET\tLEVEL\tCREATED")
			for _, a := range analyses {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", a.ID, a.Status, a.PresetID, a.Level, a.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&branch, "branch", "", "branch to list")
	list.MarkFlagRequired("branch")

	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one analysis record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			a, err := c.GetAnalysis(cmd.Context(), id)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(a, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	presets := &cobra.Command{
		Use:   "presets",
		Short: "List analysis presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			presets, err := c.ListAnalysisPresets(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tSCHEDULE")
			for _, p := range presets {
				schedule := ""
				if p.Schedule != nil {
					schedule = *p.Schedule
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Type, schedule)
			}
			return w.Flush()
		},
	}

	top.AddCommand(run, list, get, presets)
	return top
}

func settingCmd() *cobra.Command {
	top := &cobra.Command{Use: "setting", Short: "Read or write daemon settings"}

	get := &cobra.Command{
		Use:  "get [key]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			v, err := c.GetSetting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
	set := &cobra.Command{
		Use:  "set [key] [value]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			return c.SetSetting(cmd.Context(), args[0], args[1])
		},
	}
	top.AddCommand(get, set)
	return top
}

// terminalCmd creates a new terminal session sized to the caller's current
// tty, the way the teacher's cmd/wt egg.go detects cols/rows via
// term.GetSize before spawning a session.
func terminalCmd() *cobra.Command {
	var shell string
	cmd := &cobra.Command{
		Use:   "terminal",
		Short: "Create a new terminal session sized to this tty",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			cols, rows := uint16(80), uint16(24)
			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				if w, h, err := term.GetSize(fd); err == nil {
					cols, rows = uint16(w), uint16(h)
				}
			}
			cwd, _ := os.Getwd()
			id, err := c.CreateTerminal(cmd.Context(), ipc.CreateTerminalParams{
				Shell: shell, Cols: cols, Rows: rows, Cwd: cwd,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created terminal session %d (%dx%d)\n", id, cols, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "shell to spawn (defaults to the daemon's configured shell)")
	return cmd
}

// statusCmd prints daemon uptime-ish info: recent analyses and their age,
// rendered with human-readable durations the way the teacher's relay
// status output uses go-humanize.
func statusCmd() *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent analysis activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFromConfig()
			if err != nil {
				return err
			}
			analyses, err := c.ListAnalyses(cmd.Context(), branch)
			if err != nil {
				return err
			}
			if len(analyses) == 0 {
				fmt.Println("no analyses recorded yet")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tAGE")
			for _, a := range analyses {
				fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.Status, humanize.Time(a.CreatedAt))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch to inspect")
	cmd.MarkFlagRequired("branch")
	return cmd
}
