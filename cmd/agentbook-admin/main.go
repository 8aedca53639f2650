// Command agentbook-admin runs maintenance tasks against the configured
// agentbook store: integrity checks, statistics and snapshot archives.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"agentbook/internal/blob"
	"agentbook/internal/config"
	"agentbook/internal/core"
	"agentbook/internal/logger"
	"agentbook/pkg/domain"
)

// env carries the collaborators a command run needs. Tests replace the openers.
type env struct {
	out        io.Writer
	logOut     io.Writer
	loadConfig func() (*config.Config, error)
	openStore  func(ctx context.Context, cfg *config.Config, engine *domain.RulesEngine) (domain.PersistentStore, error)
	openBlobs  func(ctx context.Context, cfg config.Blob) (blob.Store, error)
}

func defaultEnv() env {
	return env{
		out:        os.Stdout,
		logOut:     os.Stderr,
		loadConfig: config.New,
		openStore:  core.OpenPersistentStore,
		openBlobs:  blob.Open,
	}
}

// errNotDurable rejects commands whose effect would vanish with the process.
var errNotDurable = errors.New("store does not persist between runs")

// session is the opened state shared by a single command invocation.
type session struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   domain.PersistentStore
	service *core.Service
	metrics *core.PrometheusRecorder
}

func (e env) open(ctx context.Context) (*session, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(e.logOut, cfg.ServiceName, cfg.LogLevel)
	cfg.Log(log)

	store, err := e.openStore(ctx, cfg, core.NewDefaultRulesEngine(nil))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
	}
	metrics := core.NewPrometheusRecorder(prometheus.NewRegistry())
	svc := core.NewService(store, core.WithLogger(log), core.WithMetricsRecorder(metrics))
	rt := &session{cfg: cfg, log: log, store: store, service: svc, metrics: metrics}
	if !rt.durable() {
		log.Warn().Str("storage_driver", cfg.StorageDriver).Msg("store is not durable; results reflect an empty in-process store")
	}
	return rt, nil
}

// durable reports whether the configured store outlives the process.
func (r *session) durable() bool {
	return r.cfg.StorageDriver != config.StorageMemory && r.cfg.StorageDriver != ""
}

func (r *session) archive(ctx context.Context, e env) (*core.Archive, error) {
	blobs, err := e.openBlobs(ctx, r.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", r.cfg.Blob.Driver, err)
	}
	return core.NewArchive(r.store, blobs, r.metrics), nil
}

func (r *session) close() {
	if err := core.CloseStore(r.store); err != nil {
		r.log.Warn().Err(err).Msg("close store")
	}
}

// withSession opens a session for the duration of fn.
func (e env) withSession(cmd *cobra.Command, fn func(ctx context.Context, rt *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
