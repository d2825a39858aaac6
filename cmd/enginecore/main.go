package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowcraft/enginecore/internal/engine"
	"github.com/flowcraft/enginecore/internal/node/runtime"
	"github.com/flowcraft/enginecore/internal/node/runtime/nodes"
	"github.com/flowcraft/enginecore/internal/platform/config"
	"github.com/flowcraft/enginecore/internal/platform/logger"
	"github.com/flowcraft/enginecore/pkg/expression"
)

const serviceName = "enginecore"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logger)
	log.Info("starting enginecore", "version", cfg.Version, "environment", cfg.Service.Environment)

	failures := runtime.Discover([]runtime.Constructor{
		func() runtime.NodeExecutor { return nodes.NewIFNode() },
		func() runtime.NodeExecutor { return nodes.NewSwitchNode() },
		func() runtime.NodeExecutor { return nodes.NewMergeNode() },
		func() runtime.NodeExecutor { return nodes.NewSetNode() },
		func() runtime.NodeExecutor { return nodes.NewLoopNode() },
		func() runtime.NodeExecutor { return nodes.NewSplitInBatchesNode() },
		func() runtime.NodeExecutor { return nodes.NewWaitNode() },
	})
	for _, f := range failures {
		log.Error("node registration failed", "index", f.Index, "error", f.Err)
	}

	tracer, err := engine.NewTracer(engine.TracingConfig{
		ServiceName:    serviceName,
		JaegerEndpoint: cfg.Telemetry.JaegerEndpoint,
		Enabled:        cfg.Telemetry.TracingEnabled,
	})
	if err != nil {
		log.Error("tracer init failed", "error", err)
	}

	var hub engine.Hub = engine.NewMemoryHub(0)
	if cfg.Telemetry.MetricsEnabled {
		hub = engine.NewMetricsHub(hub, engine.NewMetrics(serviceName))
	}

	opts := []engine.Option{engine.WithCredentialProvider(engine.NoopCredentialProvider{})}

	if store := openExecutionStore(cfg, log); store != nil {
		opts = append(opts, engine.WithStore(store))
	}

	if cfg.Snapshot.Bucket != "" {
		snapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snapshots, err := engine.NewS3SnapshotStore(snapCtx, engine.S3SnapshotConfig{
			Bucket:          cfg.Snapshot.Bucket,
			Prefix:          cfg.Snapshot.Prefix,
			Region:          cfg.Snapshot.Region,
			Endpoint:        cfg.Snapshot.Endpoint,
			AccessKeyID:     cfg.Snapshot.AccessKeyID,
			SecretAccessKey: cfg.Snapshot.SecretAccessKey,
		})
		if err != nil {
			log.Error("snapshot store init failed", "error", err)
		} else {
			opts = append(opts, engine.WithSnapshotStore(snapshots))
		}
	}

	executor := engine.NewExecutor(expression.NewParser(), hub, opts...)

	pool := engine.NewWorkerPool(executor, engine.DefaultPoolConfig())
	pool.Start(5)

	scheduler := engine.NewScheduler(pool, nil, engine.NewInMemoryScheduleRepository(), &engine.SchedulerConfig{})
	if err := scheduler.Start(context.Background()); err != nil {
		log.Error("scheduler start failed", "error", err)
	}

	log.Info("enginecore ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	scheduler.Stop()
	pool.Stop()
	if tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracer.Close(ctx)
	}
}

// openExecutionStore picks a persistence backend from cfg. Mongo is used only
// when a Mongo URI is set and Database.Host is empty; otherwise a SQL store is
// opened for Database.Driver (MySQL for "mysql", Postgres for anything else).
// Only an empty Database.Driver yields no store, and the Executor then runs
// with checkpointing disabled. The config defaults select Postgres.
func openExecutionStore(cfg *config.Config, log logger.Logger) engine.ExecutionStore {
	if cfg.Mongo.URI != "" && cfg.Database.Host == "" {
		store, err := engine.NewMongoExecutionStore(engine.MongoStoreConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		})
		if err != nil {
			log.Error("mongo execution store init failed", "error", err)
			return nil
		}
		return store
	}

	if cfg.Database.Driver == "" {
		return nil
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		log.Error("sql open failed", "error", err)
		return nil
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	switch cfg.Database.Driver {
	case "mysql":
		return engine.NewMySQLExecutionStore(db)
	default:
		return engine.NewPostgresExecutionStore(db)
	}
}
