package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/gdget/gdget/apps"
)

func main() {
	config, err := apps.GdgetConfigByArgs(os.Stderr, os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "gdget: %v\n", err)
		}
		os.Exit(2)
	}

	if config.ShowVersion {
		fmt.Println("gdget " + apps.Version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := apps.GdgetMain(ctx, config); err != nil {
		fmt.Fprintf(os.Stderr, "gdget: %v\n", err)
		os.Exit(1)
	}
}
