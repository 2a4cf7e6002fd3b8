package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"takjil/internal/config"
	"takjil/internal/geo"
	"takjil/internal/logger"
	"takjil/internal/service"
)

var version = "0.1.0"

const usage = `usage: takjil [flags] <command> [args]

commands:
  list [-q text] [-verified]     visible venues
  pending                        moderation queue
  near [-limit n]                venues by distance (needs -lat and -lng)
  show <id>                      one venue, including rejected ones
  submit -name .. -address ..    submit a venue for moderation
  rate <id> up|down              rate a venue once from this device
  moderate <id> <status>         set status (admin session required)
  login <email>                  start an admin session
  logout                         end the admin session
  watch                          print the venue set on every change
  version
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("takjil", flag.ContinueOnError)
	lat := global.Float64("lat", 0, "current latitude")
	lng := global.Float64("lng", 0, "current longitude")
	envFile := global.String("env", ".env", "dotenv file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}
	if global.Arg(0) == "version" {
		fmt.Println(version)
		return 0
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var position geo.PositionSource
	if isSet(global, "lat") && isSet(global, "lng") {
		p := geo.Point{Lat: *lat, Lng: *lng}
		position = geo.PositionFunc(func(context.Context) (geo.Point, error) { return p, nil })
	}

	svc, err := service.Open(ctx, cfg, position, log)
	if err != nil {
		log.Errorw("could not open service", "error", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warnw("close", "error", err)
		}
	}()

	state, err := svc.Boot(ctx)
	if err != nil {
		// cached data is still usable
		log.Warnw("live updates unavailable", "auth", state.String(), "error", err)
	}

	cmd := commands[global.Arg(0)]
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", global.Arg(0), usage)
		return 2
	}
	if err := cmd(ctx, &app{svc: svc, log: log, out: os.Stdout}, global.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		log.Errorw("command failed", "command", global.Arg(0), "error", err)
		return 1
	}
	return 0
}

func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
