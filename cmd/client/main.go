package main

import (
	"bufio"
	"chat-relay/client"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	config, err := client.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to the relay.
	c, err := client.Dial(ctx, config.ServerURL, log, client.NewPrinter(os.Stdout, config.CodecKey, config.Colours))
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = c.Close()
	}()

	// 4. Forward stdin lines until EOF.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			in, ok := client.ParseLine(scanner.Text())
			if !ok {
				continue
			}
			if err := c.Send(in); err != nil {
				log.Error("Failed to send", "error", err)
				stop()
				return
			}
		}
		stop()
	}()

	// 5. Print events until the server or the user hangs up.
	if err := c.Listen(ctx); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
