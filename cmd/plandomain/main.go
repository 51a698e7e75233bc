// Command plandomain loads a declarative planning problem from yaml,
// grounds it, and either solves it or reports the grounded form. Plans go
// to stdout, diagnostics to stderr.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	plandomain "github.com/joeycumines/go-plandomain"
	"github.com/joeycumines/go-plandomain/engine"
	pabtsolver "github.com/joeycumines/go-plandomain/engine/pabt"
	"github.com/joeycumines/go-plandomain/problem"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "plandomain",
		Short:         "Ground and solve declarative planning problems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newSolveCmd(), newGroundCmd())
	return root
}

func newSolveCmd() *cobra.Command {
	var (
		solverName string
		maxWidth   int
		maxTicks   int
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "solve <problem.yaml>",
		Short: "Solve a problem and print the plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problem.LoadFile(args[0])
			if err != nil {
				return err
			}
			d, err := plandomain.New(p)
			if err != nil {
				return err
			}
			var solver engine.Solver
			switch solverName {
			case "iw":
				solver = &engine.IW{MaxWidth: maxWidth}
			case "pabt":
				solver = &pabtsolver.Solver{MaxTicks: maxTicks}
			default:
				return fmt.Errorf("unknown solver %q (want iw or pabt)", solverName)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			res, err := engine.Solve(ctx, d, solver)
			if err != nil {
				return err
			}
			slog.Info("solved",
				"id", res.ID,
				"engine", res.Engine,
				"length", res.Length,
				"cost", res.Cost,
				"elapsed", res.Elapsed)
			if res.Length > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), res.Plan.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&solverName, "solver", "iw", "solver to use (iw or pabt)")
	cmd.Flags().IntVar(&maxWidth, "max-width", 0, "iw: maximum novelty width (0 = default)")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "pabt: maximum ticks (0 = default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the solve after this duration")
	return cmd
}

func newGroundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ground <problem.yaml>",
		Short: "Ground a problem and print its variables and actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problem.LoadFile(args[0])
			if err != nil {
				return err
			}
			d, err := plandomain.New(p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			gp := d.Ground()
			st := d.Reset()
			fmt.Fprintf(out, "variables (%d):\n", st.Len())
			for i, key := range gp.Keys {
				fmt.Fprintf(out, "  %s = %s\n", key, st.At(i))
			}
			fmt.Fprintf(out, "actions (%d):\n", len(gp.Actions))
			for _, a := range gp.Actions {
				fmt.Fprintf(out, "  %s\n", a.Name)
			}
			fmt.Fprintf(out, "goals (%d):\n", len(gp.Goals))
			for _, g := range gp.Goals {
				fmt.Fprintf(out, "  %s\n", g.Source)
			}
			return nil
		},
	}
}
