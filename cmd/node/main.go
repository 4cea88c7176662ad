// Package main is the entry point for running a single ProcessorNode
// pipeline stage: a process that reads its wiring from a configuration
// file, starts whichever UDP reader/writer pairs that file describes,
// and forwards packets through a handler chain until told to stop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/oharbase/processornode/metric"
	"github.com/oharbase/processornode/node"
)

const (
	Version = "0.1.0"
	appName = "processornode"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("node failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	registry := metric.NewMetricsRegistry()

	var metricsServer *metric.Server
	if cliCfg.MetricsPort != 0 {
		metricsServer = metric.NewServer(cliCfg.MetricsPort, "/metrics", registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer metricsServer.Stop()
	}

	obs := &cliObserver{log: logger}
	n := node.New(registry.CoreMetrics(), logger, obs)

	logger.Info("loading configuration", "path", cliCfg.ConfigPath)
	if err := n.Configure(cliCfg.ConfigPath); err != nil {
		return fmt.Errorf("configure node: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting node", "name", n.NodeName())
	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	if cliCfg.Console {
		go readConsoleCommands(ctx, n, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case <-n.Done():
		logger.Info("node stopped itself")
	}

	if err := n.Stop(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	logger.Info("node shutdown complete")
	return nil
}

// readConsoleCommands reads one command per line from stdin and forwards
// it to the node, until ctx is done or stdin is closed. This enables the
// console command loop that ProcessorNode.cpp's start() left commented
// out in the original source.
func readConsoleCommands(ctx context.Context, n *node.Node, log *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Enter command (ping, readfile, shutdown, quit):")
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}
		log.Info("console command", "command", cmd)
		n.HandleCommand(cmd)
	}
}

// cliObserver surfaces node notifications to the console and the log.
type cliObserver struct {
	log *slog.Logger
}

func (o *cliObserver) ShowMessage(message string) {
	fmt.Println(message)
}

func (o *cliObserver) LogAndShowMessage(message string) {
	o.log.Warn(message)
	fmt.Println(message)
}

func (o *cliObserver) InitiateShutdown() {
	o.log.Info("peer requested shutdown")
}
