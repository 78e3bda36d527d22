package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/httpx"
	"github.com/onnwee/graphvis3d/internal/layout"
	"github.com/onnwee/graphvis3d/internal/logger"
)

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logLevel string
	seed     uint64
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:          "graphvis",
		Short:        "Headless multilevel 3D graph layout",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// stdout carries results, so logs go to stderr.
			logger.InitWriter(c.stderr, c.logLevel)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().Uint64Var(&c.seed, "seed", 0, "random seed (0 picks one from the clock)")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.layoutCommand())
	return root
}

func (c *cli) rng() *rand.Rand {
	seed := c.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(seed))
}

func (c *cli) generateCommand() *cobra.Command {
	var (
		opts   graph.GenerateOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a random graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Nodes < 1 || opts.Edges < 0 {
				return fmt.Errorf("nodes must be positive and edges non-negative")
			}
			g := graph.New()
			graph.Generate(g, opts, c.rng())
			return c.writeJSON(output, g)
		},
	}
	cmd.Flags().IntVarP(&opts.Nodes, "nodes", "n", 100, "number of nodes")
	cmd.Flags().IntVarP(&opts.Edges, "edges", "e", 150, "approximate number of edges")
	cmd.Flags().BoolVar(&opts.Directionless, "directionless", false, "generate undirected edges")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *cli) layoutCommand() *cobra.Command {
	var (
		params    = layout.DefaultParams()
		maxTicks  int
		maxLevels int
		output    string
	)
	cmd := &cobra.Command{
		Use:   "layout [graph.json | url]",
		Short: "Lay a graph out to convergence and write the final positions",
		Long: `Lay a graph out to convergence and write the final positions.

The graph is read from the given file or http(s) URL, such as the /api/graph
endpoint of a running server, or from stdin when the argument is omitted or
"-". The output is the final frame: node labels with positions and
edges indexing into the node list.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := params.Validate(); err != nil {
				return err
			}
			g, err := c.readGraph(cmd.Context(), args)
			if err != nil {
				return err
			}

			e, err := engine.New(engine.Options{Params: params, Rand: c.rng(), MaxLevels: maxLevels})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := e.Load(ctx, g); err != nil {
				return err
			}
			ticks, err := e.Run(ctx, maxTicks)
			if err != nil {
				return err
			}
			if !e.Done() {
				logger.Warn("layout stopped before converging", "ticks", ticks, "level", e.Frame().Level)
			}
			logger.Info("layout finished", "ticks", ticks, "nodes", g.Size(), "edges", g.EdgeCount())
			return c.writeJSON(output, e.Frame())
		},
	}
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 100000, "stop after this many ticks")
	cmd.Flags().IntVar(&maxLevels, "max-levels", 0, "cap on coarsening levels (0 = unlimited)")
	cmd.Flags().Float64Var(&params.Theta, "theta", params.Theta, "Barnes-Hut opening angle")
	cmd.Flags().Float64Var(&params.Cooling, "cooling", params.Cooling, "temperature multiplier per tick")
	cmd.Flags().Float64Var(&params.HaltSpeed, "halt-speed", params.HaltSpeed, "speed below which a body halts")
	cmd.Flags().Float64Var(&params.SpringLength, "spring-length", params.SpringLength, "edge rest length")
	cmd.Flags().Float64Var(&params.Repulsion, "repulsion", params.Repulsion, "repulsion strength")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *cli) readGraph(ctx context.Context, args []string) (*graph.Graph, error) {
	in := c.stdin
	name := "stdin"
	switch {
	case len(args) == 0 || args[0] == "-":
	case strings.HasPrefix(args[0], "http://"), strings.HasPrefix(args[0], "https://"):
		resp, err := httpx.Get(ctx, httpx.Options{}, args[0])
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		in, name = resp.Body, args[0]
	default:
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in, name = f, args[0]
	}
	g := graph.New()
	if err := json.NewDecoder(in).Decode(g); err != nil {
		return nil, fmt.Errorf("read graph from %s: %w", name, err)
	}
	return g, nil
}

func (c *cli) writeJSON(output string, v any) error {
	out := c.stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
