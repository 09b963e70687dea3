package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"github.com/hiway/murmur"
	"github.com/hiway/murmur/pkg/config"
	"github.com/hiway/murmur/pkg/console"
	"github.com/hiway/murmur/pkg/playlist"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "murmur",
		HelpName: "murmur",
		Usage:    "plays random clips from a card at random intervals",
		Version:  murmur.Version,
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "run the device loop",
				Action: run,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "config, c", Usage: "device settings file"},
					cli.StringFlag{Name: "root", Usage: "directory standing in for the card"},
					cli.StringFlag{Name: "pins", Usage: "pin backend: console, sysfs or memory"},
					cli.Uint64Flag{Name: "seed", Usage: "random seed (0 seeds from the clock)"},
					cli.StringFlag{Name: "log-level", Usage: "override the configured log level"},
				},
			},
			{
				Name:      "check",
				Usage:     "parse a playlist and show what would be played",
				ArgsUsage: "FILE",
				Action:    check,
			},
			{
				Name:   "simulate",
				Usage:  "run the scheduler on a synthetic clock and report the picks",
				Action: simulate,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "root", Value: ".", Usage: "directory standing in for the card"},
					cli.StringFlag{Name: "file", Value: playlist.DefaultFile, Usage: "playlist name on the card"},
					cli.IntFlag{Name: "cycles", Value: 1000, Usage: "number of clips to start"},
					cli.Uint64Flag{Name: "clip-ms", Value: 500, Usage: "simulated clip length"},
					cli.Uint64Flag{Name: "seed", Value: 1, Usage: "random seed"},
				},
			},
		},
	}
}

func newLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().Timestamp().Logger()
}

func run(ctx *cli.Context) error {
	boot := newLogger(os.Stderr, zerolog.InfoLevel)

	cfg, err := config.Load(ctx.String("config"), boot)
	if err != nil {
		return err
	}
	if root := ctx.String("root"); root != "" {
		cfg.Storage.Root = root
	}
	if pins := ctx.String("pins"); pins != "" {
		cfg.Pins.Backend = pins
	}
	if ctx.IsSet("seed") {
		cfg.Playback.Seed = ctx.Uint64("seed")
	}
	if lvl := ctx.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.LogLevel()

	var out io.Writer = os.Stderr
	if cfg.Pins.Backend == config.BackendConsole {
		out = console.CRLFWriter{W: os.Stderr}
	}
	log := newLogger(out, level)

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m, err := murmur.New(cfg, murmur.Options{Stdin: os.Stdin, OnQuit: cancel}, log)
	if err != nil {
		return err
	}
	log.Info().
		Str("version", murmur.Version).
		Str("root", m.Card.Root()).
		Str("pins", cfg.Pins.Backend).
		Msg("Murmur starting")
	return m.Run(runCtx)
}

func check(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return cli.NewExitError("usage: murmur check FILE", 2)
	}
	f, err := os.Open(path)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer f.Close()

	log := newLogger(os.Stderr, zerolog.WarnLevel)
	s, err := playlist.Parse(f, log)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("%s: %v", path, err), 1)
	}

	fmt.Printf("delay %d..%d ms, %d entries, total weight %d\n\n",
		s.MinDelayMs, s.MaxDelayMs, len(s.Entries), s.TotalWeight)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tWEIGHT\tSHARE")
	for i, e := range s.Entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f%%\n", i, e.Path, e.Weight, 100*s.Share(i))
	}
	w.Flush()
	for _, le := range s.Skipped {
		fmt.Printf("skipped %v\n", le)
	}
	return nil
}

func simulate(ctx *cli.Context) error {
	log := newLogger(os.Stderr, zerolog.WarnLevel)
	start := time.Now()
	rep, err := murmur.Simulate(murmur.SimOptions{
		Root:       ctx.String("root"),
		ConfigFile: ctx.String("file"),
		Cycles:     ctx.Int("cycles"),
		ClipMs:     ctx.Uint64("clip-ms"),
		Seed:       ctx.Uint64("seed"),
	}, log)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	fmt.Printf("%d clips started (%d failed) over %s simulated, waits %d..%d ms (took %s)\n\n",
		rep.Plays, rep.Failures,
		(time.Duration(rep.ElapsedMs) * time.Millisecond).String(),
		rep.MinWaitMs, rep.MaxWaitMs, time.Since(start).Round(time.Millisecond))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tWEIGHT\tEXPECTED\tPLAYED")
	for i, e := range rep.Schedule.Entries {
		played := 0.0
		if rep.Plays > 0 {
			played = 100 * float64(rep.Counts[i]) / float64(rep.Plays)
		}
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%d (%.1f%%)\n", e.Path, e.Weight, 100*rep.Schedule.Share(i), rep.Counts[i], played)
	}
	return w.Flush()
}
