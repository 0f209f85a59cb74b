// Command stencilctl is the CLI entry point around package engine,
// following the same "cobra root command, subcommands bind flags into a
// YAML+viper-loaded parameter struct, then dispatch into the library"
// shape gocfd's cmd/ package uses for its 1D/2D subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/stencilcore/config"
	"github.com/notargets/stencilcore/engine"
	"github.com/notargets/stencilcore/kernels/diffusion"
	"github.com/notargets/stencilcore/memgrid"
	"github.com/notargets/stencilcore/stencil"
)

var v = viper.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stencilctl",
		Short: "Run and validate the distributed cache-blocked stencil engine",
	}
	root.PersistentFlags().StringP("config", "c", "", "YAML configuration file (see config.Parameters)")
	root.PersistentFlags().Int64("beginDT", 0, "first time step to compute")
	root.PersistentFlags().Int64("endDT", 4, "time step to stop before")

	root.AddCommand(runCmd(), refCmd(), validateCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Parameters, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("stencilctl: --config is required")
	}
	config.BindFlags(v, cmd.Flags())
	return config.Load(path)
}

func timeRange(cmd *cobra.Command) (stencil.Idx, stencil.Idx, error) {
	begin, err := cmd.Flags().GetInt64("beginDT")
	if err != nil {
		return 0, 0, err
	}
	end, err := cmd.Flags().GetInt64("endDT")
	if err != nil {
		return 0, 0, err
	}
	return begin, end, nil
}

// buildEngine wires the built-in diffusion demo kernel onto a freshly
// allocated memgrid field sized to the loaded configuration, the same
// role gocfd's Run2D plays gluing InputParameters into a concrete
// Euler2D solver instance.
func buildEngine(p *config.Parameters) (*engine.Engine, error) {
	ctx := p.ToContext("stencilctl")

	field := memgrid.New("u", ctx.Domain, ctx.Halo, ctx.Constants.VLen, 2)
	kernel := diffusion.New(field, ctx.Domain)

	newGrid := func(name string, extent stencil.Dims) stencil.Grid {
		return memgrid.New(name, extent, stencil.Dims{}, ctx.Constants.VLen, 2)
	}

	e := engine.New(ctx, []stencil.EqGroupKernel{kernel}, newGrid)
	if _, err := e.AllocAll(ctx.NumRanks > 1); err != nil {
		return nil, fmt.Errorf("stencilctl: AllocAll: %w", err)
	}

	seed := func(g stencil.Grid, seed float64) {
		mg, ok := g.(*memgrid.Grid)
		if !ok {
			return
		}
		iterateInterior(ctx.Domain, func(p stencil.Dims) {
			mg.WriteElem(seed+float64(p.X+p.Y+p.Z), 0, p)
		})
	}
	e.InitValues(seed, seed)

	return e, nil
}

func iterateInterior(domain stencil.Dims, body func(stencil.Dims)) {
	for n := stencil.Idx(0); n < domain.N; n++ {
		for x := stencil.Idx(0); x < domain.X; x++ {
			for y := stencil.Idx(0); y < domain.Y; y++ {
				for z := stencil.Idx(0); z < domain.Z; z++ {
					body(stencil.Dims{N: n, X: x, Y: y, Z: z})
				}
			}
		}
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run calc_rank_opt: the tiled, cache-blocked, wavefronted evaluator",
		RunE: func(cmd *cobra.Command, args []string) error {
			doProfile, err := cmd.Flags().GetBool("profile")
			if err != nil {
				return err
			}
			if doProfile {
				defer profile.Start(profile.CPUProfile).Stop()
			}

			p, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p.Print()

			e, err := buildEngine(p)
			if err != nil {
				return err
			}
			beginDT, endDT, err := timeRange(cmd)
			if err != nil {
				return err
			}
			if err := e.CalcRankOpt(beginDT, endDT); err != nil {
				return fmt.Errorf("stencilctl: calc_rank_opt: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "calc_rank_opt: completed steps [%d,%d)\n", beginDT, endDT)
			return nil
		},
	}
	cmd.Flags().Bool("profile", false, "wrap calc_rank_opt in a CPU profile session")
	return cmd
}

func refCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ref",
		Short: "Run calc_rank_ref: the plain whole-domain reference evaluator",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p.Print()

			e, err := buildEngine(p)
			if err != nil {
				return err
			}
			beginDT, endDT, err := timeRange(cmd)
			if err != nil {
				return err
			}
			e.CalcRankRef(beginDT, endDT)
			fmt.Fprintf(cmd.OutOrStdout(), "calc_rank_ref: completed steps [%d,%d)\n", beginDT, endDT)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the bounding box and invariants without running any time steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := p.ToContext("stencilctl-validate")

			field := memgrid.New("u", ctx.Domain, ctx.Halo, ctx.Constants.VLen, 2)
			kernel := diffusion.New(field, ctx.Domain)
			newGrid := func(name string, extent stencil.Dims) stencil.Grid {
				return memgrid.New(name, extent, stencil.Dims{}, ctx.Constants.VLen, 2)
			}
			e := engine.New(ctx, []stencil.EqGroupKernel{kernel}, newGrid)
			if _, err := e.AllocAll(ctx.NumRanks > 1); err != nil {
				return fmt.Errorf("stencilctl: validate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bounding box OK: begin=%+v end=%+v\n", ctx.BeginBB, ctx.EndBB)
			return nil
		},
	}
}
