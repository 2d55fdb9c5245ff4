// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/santhosh-r/TaggableFS/internal/cliserver"
	"github.com/santhosh-r/TaggableFS/internal/dispatch"
	"github.com/santhosh-r/TaggableFS/internal/fuseadapter"
	"github.com/santhosh-r/TaggableFS/internal/hashstore"
	"github.com/santhosh-r/TaggableFS/internal/metadata"
	"github.com/santhosh-r/TaggableFS/internal/metrics"
	"github.com/santhosh-r/TaggableFS/internal/tfs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		root        string
		mountpoint  string
		view        string
		socketPath  string
		metricsAddr string
		logLevel    string
	)
	flag.StringVar(&root, "root", "", "object store and metadata root directory (required)")
	flag.StringVar(&mountpoint, "mountpoint", "", "FUSE mount directory (required)")
	flag.StringVar(&view, "view", "folder", "mount view: \"folder\" or \"tag\"")
	flag.StringVar(&socketPath, "socket", "", "Unix socket path for the CLI protocol (required)")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on (optional, disabled if empty)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if root == "" {
		return fmt.Errorf("--root is required")
	}
	if mountpoint == "" {
		return fmt.Errorf("--mountpoint is required")
	}
	if socketPath == "" {
		return fmt.Errorf("--socket is required")
	}

	daemonView, err := parseView(view)
	if err != nil {
		return err
	}

	logger := newLogger(logLevel)

	metadataDir := filepath.Join(root, "metadata")
	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	snapshotPath := filepath.Join(metadataDir, "fs.db")

	store, err := hashstore.NewStore(root)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}

	idx, err := metadata.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("opening metadata index: %w", err)
	}

	manager := tfs.New(idx, store)
	d := dispatch.New(manager, daemonView, logger, 10)

	m := metrics.New()
	d.SetRecorder(m)

	signalCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	ctx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	go d.Run(ctx)

	// An FD_EXIT/QH_EXIT request stops the dispatcher directly; this
	// goroutine turns that into the same context cancellation an OS
	// signal would produce, so the CLI/metrics listeners and the final
	// wait below unblock exactly the same way either shutdown path.
	go func() {
		select {
		case <-d.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	fuseServer, err := fuseadapter.Mount(fuseadapter.Options{
		Mountpoint: mountpoint,
		Dispatcher: d,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting FUSE filesystem: %w", err)
	}

	cliSrv := cliserver.New(socketPath, d, logger)
	cliDone := make(chan error, 1)
	go func() { cliDone <- cliSrv.Serve(ctx) }()

	var metricsDone chan error
	if metricsAddr != "" {
		metricsDone = make(chan error, 1)
		go func() { metricsDone <- m.Serve(ctx, metricsAddr, logger) }()
	}

	logger.Info("taggablefs daemon running",
		"root", root,
		"mountpoint", mountpoint,
		"view", view,
		"socket", socketPath,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := fuseServer.Unmount(); err != nil {
		logger.Error("unmount failed", "error", err)
	}

	if err := <-cliDone; err != nil {
		logger.Error("cli socket listener error", "error", err)
	}
	if metricsDone != nil {
		if err := <-metricsDone; err != nil {
			logger.Error("metrics listener error", "error", err)
		}
	}

	if err := idx.Save(snapshotPath); err != nil {
		return fmt.Errorf("snapshotting metadata index: %w", err)
	}
	if err := idx.Close(); err != nil {
		logger.Error("closing metadata index", "error", err)
	}

	return nil
}

func parseView(s string) (dispatch.View, error) {
	switch s {
	case "folder":
		return dispatch.FolderView, nil
	case "tag":
		return dispatch.TagView, nil
	default:
		return 0, fmt.Errorf("--view must be \"folder\" or \"tag\", got %q", s)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
