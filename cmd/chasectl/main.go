// Command chasectl inspects recorded chase runs and drives a running
// chasesim through its HTTP API. It also reads and converts run export files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ttacon/chalk"
	"github.com/urfave/cli"

	"github.com/pursuitlab/roadchase/internal/api"
	"github.com/pursuitlab/roadchase/internal/storage/memory"
)

const defaultAPI = "http://127.0.0.1:8095"

func main() {
	app := makeapp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, chalk.Red.Color("error: ")+err.Error())
		os.Exit(1)
	}
}

func makeapp() *cli.App {
	app := cli.NewApp()
	app.Name = "chasectl"
	app.Usage = "inspect and control chase runs"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "api", Value: defaultAPI, Usage: "chasesim API base URL", EnvVar: "CHASE_API"},
		cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "request timeout"},
	}

	app.Commands = []cli.Command{
		{
			Name:  "ping",
			Usage: "Check that the API is reachable",
			Action: func(c *cli.Context) error {
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					if err := client.Healthcheck(ctx); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, chalk.Green.Color("ok"))
					return nil
				})
			},
		},
		{
			Name:    "runs",
			Aliases: []string{"ls"},
			Usage:   "List recorded runs, newest first",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum number of runs"},
			},
			Action: func(c *cli.Context) error {
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					runs, err := client.ListRuns(ctx, c.Int("limit"))
					if err != nil {
						return err
					}
					return printRuns(c.App.Writer, runs)
				})
			},
		},
		{
			Name:      "show",
			Usage:     "Show one run",
			ArgsUsage: "<run-id>",
			Action: func(c *cli.Context) error {
				id, err := runIDArg(c)
				if err != nil {
					return err
				}
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					run, err := client.GetRun(ctx, id)
					if api.IsNotFound(err) {
						return fmt.Errorf("run %s not found", id)
					}
					if err != nil {
						return err
					}
					return printRun(c.App.Writer, run)
				})
			},
		},
		{
			Name:      "frames",
			Usage:     "Print the sampled frames of a run",
			ArgsUsage: "<run-id>",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "tail", Usage: "only the last N samples"},
			},
			Action: func(c *cli.Context) error {
				id, err := runIDArg(c)
				if err != nil {
					return err
				}
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					frames, err := client.RunFrames(ctx, id)
					if err != nil {
						return err
					}
					if n := c.Int("tail"); n > 0 && n < len(frames) {
						frames = frames[len(frames)-n:]
					}
					return printFrames(c.App.Writer, frames)
				})
			},
		},
		{
			Name:      "events",
			Usage:     "Print the events of a run",
			ArgsUsage: "<run-id>",
			Action: func(c *cli.Context) error {
				id, err := runIDArg(c)
				if err != nil {
					return err
				}
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					events, err := client.RunEvents(ctx, id)
					if err != nil {
						return err
					}
					return printEvents(c.App.Writer, events)
				})
			},
		},
		{
			Name:  "status",
			Usage: "Show the live chase state",
			Action: func(c *cli.Context) error {
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					st, err := client.Status(ctx)
					if err != nil {
						return err
					}
					return printStatus(c.App.Writer, st)
				})
			},
		},
		{
			Name:  "reset",
			Usage: "Start a new run",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "seed", Usage: "reseed the world before resetting"},
			},
			Action: func(c *cli.Context) error {
				var seed *uint64
				if s := c.String("seed"); s != "" {
					v, err := strconv.ParseUint(s, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid seed %q: %w", s, err)
					}
					seed = &v
				}
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					if err := client.Reset(ctx, seed); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, chalk.Green.Color("reset queued"))
					return nil
				})
			},
		},
		{
			Name:      "speed",
			Usage:     "Set the speed factor",
			ArgsUsage: "<factor>",
			Action: func(c *cli.Context) error {
				factor, err := strconv.ParseFloat(c.Args().First(), 64)
				if err != nil {
					return fmt.Errorf("invalid speed factor %q", c.Args().First())
				}
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					applied, err := client.SetSpeed(ctx, factor)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "speed factor %g\n", applied)
					return nil
				})
			},
		},
		{
			Name:      "color",
			Usage:     "Set the car colour",
			ArgsUsage: "<color>",
			Action: func(c *cli.Context) error {
				color := c.Args().First()
				if color == "" {
					return errors.New("missing colour")
				}
				return withClient(c, func(ctx context.Context, client *api.Client) error {
					applied, err := client.SetColor(ctx, color)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "color %s\n", applied)
					return nil
				})
			},
		},
		{
			Name:      "inspect",
			Usage:     "Summarize a run export file",
			ArgsUsage: "<file>",
			Action: func(c *cli.Context) error {
				path := c.Args().First()
				if path == "" {
					return errors.New("missing export file")
				}
				export, err := memory.ReadExport(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				return printExport(c.App.Writer, export)
			},
		},
		{
			Name:      "convert",
			Usage:     "Rewrite an export file; format and compression follow the file names",
			ArgsUsage: "<in> <out>",
			Action: func(c *cli.Context) error {
				in, out := c.Args().Get(0), c.Args().Get(1)
				if in == "" || out == "" {
					return errors.New("usage: convert <in> <out>")
				}
				export, err := memory.ReadExport(in)
				if err != nil {
					return fmt.Errorf("read %s: %w", in, err)
				}
				if err := memory.WriteExport(out, export); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
				return nil
			},
		},
	}
	return app
}

func runIDArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", errors.New("missing run id")
	}
	return id, nil
}

func withClient(c *cli.Context, fn func(context.Context, *api.Client) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("timeout"))
	defer cancel()
	return fn(ctx, api.NewClient(c.GlobalString("api")))
}
