package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/querytrace/querytrace/internal/cli/querytracectl"
)

func main() {
	_ = godotenv.Load()

	options, err := querytracectl.OptionsFromEnv(os.LookupEnv)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	options.Stdin = os.Stdin
	options.Stdout = os.Stdout
	options.Stderr = os.Stderr

	// An ask can run for minutes; Ctrl-C abandons the request.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := querytracectl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}
