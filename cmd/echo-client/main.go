// echo-client connects to an echo server, sends each line typed by the
// operator and prints the reply, until "Quit" is answered with "Goodbye".
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cyberinferno/go-echo/config"
	"github.com/cyberinferno/go-echo/echoerr"
	"github.com/cyberinferno/go-echo/logger"
	"github.com/cyberinferno/go-echo/protocol"
	"github.com/cyberinferno/go-echo/tcpclient"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("echo-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a TOML configuration file")
	host := fs.String("host", protocol.DefaultClientHost, "server host")
	port := fs.Int("port", protocol.DefaultClientPort, "server port")
	connectTimeout := fs.Duration("connect-timeout", 0, "dial timeout (0 waits as long as the OS does)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "log format: console or json")
	logDir := fs.String("log-dir", "", "also write daily log files into this directory")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return echoerr.ExitOK
		}
		return echoerr.ExitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return echoerr.ExitUsage
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Client.Host = *host
		case "port":
			cfg.Client.Port = *port
		case "connect-timeout":
			cfg.Client.ConnectTimeout = config.Duration{Duration: *connectTimeout}
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		case "log-dir":
			cfg.Logging.Dir = *logDir
		}
	})

	if err := cfg.ValidateClient(); err != nil {
		fmt.Fprintln(stderr, err)
		return echoerr.ExitUsage
	}

	opts, err := cfg.LoggerOptions("echo-client")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return echoerr.ExitUsage
	}
	opts.Output = stderr

	log, err := logger.New(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return echoerr.ExitUsage
	}
	defer log.Close()

	if cfg.Client.Port != protocol.DefaultServerPort {
		log.Warn("client port differs from the server's default port",
			logger.Field{Key: "port", Value: cfg.Client.Port},
			logger.Field{Key: "server_default", Value: protocol.DefaultServerPort},
		)
	}

	client := tcpclient.NewClient(tcpclient.Config{ConnectionTimeout: cfg.Client.ConnectTimeout.Duration}, log)
	client.OnConnectionState(func(e tcpclient.ConnectionStateEvent) {
		log.Debug("connection state changed",
			logger.Field{Key: "state", Value: e.State.String()},
			logger.Field{Key: "addr", Value: e.Address},
			logger.Field{Key: "at", Value: e.Timestamp.Format(time.RFC3339Nano)},
		)
	})

	if err := client.Connect(cfg.Client.Host, cfg.Client.Port); err != nil {
		return echoerr.ExitCode(err)
	}

	fmt.Fprintln(stdout, "Connected to server")

	if err := client.InteractLoop(stdin, stdout); err != nil {
		return echoerr.ExitCode(err)
	}

	return echoerr.ExitOK
}
