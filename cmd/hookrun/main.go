package main

import (
	"log/slog"
	"os"

	"github.com/raphi011/hookrun"

	_ "github.com/raphi011/hookrun/plugin"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	h := hookrun.New(hookrun.WithLogger(log))

	os.Exit(h.Main(os.Args))
}
