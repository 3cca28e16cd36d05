// echo-server accepts one TCP client, answers each of its messages with "OK"
// (or "Goodbye" to "Quit") and exits when that session ends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-echo/config"
	"github.com/cyberinferno/go-echo/echoerr"
	"github.com/cyberinferno/go-echo/logger"
	"github.com/cyberinferno/go-echo/protocol"
	"github.com/cyberinferno/go-echo/tcpserver"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("echo-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a TOML configuration file")
	port := fs.Int("port", protocol.DefaultServerPort, "port to listen on (0 picks a free port)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "log format: console or json")
	logDir := fs.String("log-dir", "", "also write daily log files into this directory")
	storeBackend := fs.String("store", "", "session summary store: none, memory or redis")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return echoerr.ExitOK
		}
		return echoerr.ExitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return echoerr.ExitUsage
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		case "log-dir":
			cfg.Logging.Dir = *logDir
		case "store":
			cfg.Store.Backend = *storeBackend
		}
	})

	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return echoerr.ExitUsage
	}

	opts, err := cfg.LoggerOptions("echo-server")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return echoerr.ExitUsage
	}

	log, err := logger.New(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return echoerr.ExitUsage
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg.Store, log)
	defer closeStore()

	srv := tcpserver.New("echo", log, store)
	if err := srv.Start(cfg.Server.Port); err != nil {
		return echoerr.ExitCode(err)
	}

	return exitCode(serve(ctx, srv, log), log)
}

// serve runs the server until its session ends. A second goroutine waits for
// ctx and closes the server, which unblocks a pending accept or read.
func serve(ctx context.Context, srv *tcpserver.EchoServer, log logger.Logger) error {
	done := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		defer close(done)
		_, err := srv.Run(context.Background())
		return err
	})

	g.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			if err := srv.Close(); err != nil {
				log.Warn("failed to close server", logger.Field{Key: "error", Value: err})
			}
		case <-done:
		}
		return nil
	})

	return g.Wait()
}

func exitCode(err error, log logger.Logger) int {
	if err == nil || errors.Is(err, tcpserver.ErrServerClosed) {
		return echoerr.ExitOK
	}

	log.Error("server failed", logger.Field{Key: "error", Value: err})
	return echoerr.ExitCode(err)
}
