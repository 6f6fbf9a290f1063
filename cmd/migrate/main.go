package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/migrate"
	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
)

func main() {
	var (
		dsn     = flag.String("dsn", os.Getenv("ITROOM_PG_DSN"), "PostgreSQL URL")
		timeout = flag.Duration("timeout", 2*time.Minute, "Overall deadline")
		verbose = flag.Bool("v", false, "Log each applied migration")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := obs.NewLogger(os.Stderr, level, "text")
	obs.SetLogger(logger)

	if *dsn == "" {
		fatal("missing DSN: provide via -dsn or ITROOM_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		fatal("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mgr, err := migrate.NewManager(*dsn, logger)
	if err != nil {
		fatal(err.Error())
	}
	defer mgr.Close()

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "status":
		var st migrate.Status
		st, err = mgr.Status()
		if err == nil {
			switch {
			case !st.Applied:
				fmt.Println("no migrations applied")
			case st.Dirty:
				fmt.Printf("version %d (dirty)\n", st.Version)
			default:
				fmt.Printf("version %d\n", st.Version)
			}
		}
	default:
		fatal(fmt.Sprintf("unknown command %q", flag.Arg(0)))
	}
	if err != nil {
		fatal(fmt.Sprintf("migrate %s: %v", flag.Arg(0), err))
	}
}

func fatal(msg string) {
	obs.Logger().Error(msg)
	os.Exit(1)
}
