package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/IvanBrykalov/tiercache/cache"
)

func getCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the value stored under a key",
		ArgsUsage: "<key>",
		Action: func(ctx *cli.Context) error {
			key, err := oneArg(ctx, "key")
			if err != nil {
				return err
			}
			s, err := g.open(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			v, ok := s.layer.Get(key)
			if !ok {
				return cli.Exit(fmt.Sprintf("%s: not found", key), 2)
			}
			_, err = fmt.Fprintln(ctx.App.Writer, string(v))
			return err
		},
	}
}

func setCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "write a value through every tier",
		ArgsUsage: "<key> <value>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return cli.Exit("usage: tiercache set <key> <value>", 1)
			}
			s, err := g.open(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.layer.Set(ctx.Args().Get(0), parseValue(ctx.Args().Get(1)))
		},
	}
}

func invalidateCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "invalidate",
		Aliases:   []string{"del"},
		Usage:     "remove keys from every tier",
		ArgsUsage: "<key>...",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.Exit("usage: tiercache invalidate <key>...", 1)
			}
			s, err := g.open(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, key := range ctx.Args().Slice() {
				if err := s.layer.Invalidate(key); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func clearCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "empty the namespace's disk tier (the remote tier is left alone)",
		Action: func(ctx *cli.Context) error {
			s, err := g.open(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.layer.Clear()
		},
	}
}

// statsReport is the JSON printed by the stats command.
type statsReport struct {
	Namespace string      `json:"namespace"`
	DiskPath  string      `json:"diskPath"`
	Found     int         `json:"found"`
	Probed    int         `json:"probed"`
	HitRatio  float64     `json:"hitRatio"`
	Counters  cache.Stats `json:"counters"`
}

func statsCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "look up keys and print per-tier hit statistics as JSON",
		ArgsUsage: "[key...]",
		Action: func(ctx *cli.Context) error {
			s, err := g.open(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			rep := statsReport{
				Namespace: s.cfg.Namespace,
				DiskPath:  s.cfg.DiskPath(),
				Probed:    ctx.NArg(),
			}
			for _, key := range ctx.Args().Slice() {
				if _, ok := s.layer.Get(key); ok {
					rep.Found++
				}
			}
			st := s.layer.GetStats()
			rep.HitRatio = st.HitRatio()
			rep.Counters = st

			enc := json.NewEncoder(ctx.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}

func oneArg(ctx *cli.Context, name string) (string, error) {
	if ctx.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: tiercache %s <%s>", ctx.Command.Name, name), 1)
	}
	return ctx.Args().First(), nil
}
