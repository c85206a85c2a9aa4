// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command zyre-node runs a ZRE node as a daemon. Network events are logged
// and the node state is served over HTTP along with its metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/destiny/zyre"
)

func main() {
	var (
		config   = flag.String("config", "", "YAML configuration file")
		name     = flag.String("name", "", "node name")
		groups   = flag.String("join", "", "comma-separated groups to join")
		httpAddr = flag.String("http", "127.0.0.1:8080", "HTTP listen address, empty to disable")
		level    = flag.String("log-level", "", "log level (error, warn, info, debug, trace)")
	)
	flag.Parse()

	if err := run(*config, *name, *groups, *httpAddr, *level); err != nil {
		fmt.Fprintf(os.Stderr, "zyre-node: %+v\n", err)
		os.Exit(1)
	}
}

func run(path, name, groups, httpAddr, level string) error {
	cfg := zyre.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = zyre.LoadConfig(path); err != nil {
			return err
		}
	}
	if name != "" {
		cfg.Name = name
	}
	if level != "" {
		cfg.LogLevel = level
	}

	lvl, err := zyre.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log, err := zyre.NewLogger(lvl)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cfg.Logger = log
	cfg.Registerer = reg

	node, err := zyre.NewNode(cfg)
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		return err
	}
	for _, g := range strings.Split(groups, ",") {
		if g = strings.TrimSpace(g); g == "" {
			continue
		}
		if err := node.Join(g); err != nil {
			_ = node.Stop()
			return fmt.Errorf("could not join %q: %w", g, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		logEvents(log, node.Events())
		return nil
	})
	if httpAddr != "" {
		srv := &http.Server{
			Addr:              httpAddr,
			Handler:           newRouter(node, reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		grp.Go(func() error {
			log.Info("serving http", zap.String("addr", httpAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		grp.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	grp.Go(func() error {
		<-ctx.Done()
		return node.Stop()
	})
	return grp.Wait()
}

func logEvents(log *zap.Logger, events <-chan *zyre.Event) {
	for e := range events {
		fields := []zap.Field{
			zap.String("peer", e.Peer),
			zap.String("name", e.Name),
		}
		switch e.Type {
		case zyre.EventTypeEnter:
			fields = append(fields, zap.String("endpoint", e.Endpoint))
		case zyre.EventTypeJoin, zyre.EventTypeLeave:
			fields = append(fields, zap.String("group", e.Group))
		case zyre.EventTypeShout:
			fields = append(fields, zap.String("group", e.Group), zap.Int("size", len(e.Payload)))
		case zyre.EventTypeWhisper:
			fields = append(fields, zap.Int("size", len(e.Payload)))
		}
		log.Info(string(e.Type), fields...)
	}
}

type peerInfo struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

func newRouter(node *zyre.Node, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/node", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"identity": node.Identity(),
			"name":     node.Name(),
			"endpoint": node.Endpoint(),
			"groups":   node.OwnGroups(),
		})
	})
	r.Get("/peers", func(w http.ResponseWriter, _ *http.Request) {
		ids := node.Peers()
		peers := make([]peerInfo, 0, len(ids))
		for _, id := range ids {
			peers = append(peers, peerInfo{
				Identity: id,
				Name:     node.PeerName(id),
				Endpoint: node.PeerEndpoint(id),
			})
		}
		writeJSON(w, peers)
	})
	r.Get("/groups", func(w http.ResponseWriter, _ *http.Request) {
		groups := make(map[string][]string)
		for _, g := range node.PeerGroups() {
			groups[g] = node.PeersByGroup(g)
		}
		writeJSON(w, groups)
	})
	r.Post("/groups/{group}/shout", func(w http.ResponseWriter, req *http.Request) {
		payload, err := readBody(w, req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := node.Shout(chi.URLParam(req, "group"), payload); err != nil {
			http.Error(w, err.Error(), statusOf(err))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/peers/{peer}/whisper", func(w http.ResponseWriter, req *http.Request) {
		payload, err := readBody(w, req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := node.Whisper(chi.URLParam(req, "peer"), payload); err != nil {
			http.Error(w, err.Error(), statusOf(err))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

const maxBody = 1 << 20

func readBody(w http.ResponseWriter, req *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, req.Body, maxBody))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, zyre.ErrInvalidGroup):
		return http.StatusBadRequest
	case errors.Is(err, zyre.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
