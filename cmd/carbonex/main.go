package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/zsmartex/carbonex/compliance"
	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/jobs/cron"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/mq_client"
	"github.com/zsmartex/carbonex/pipeline"
	"github.com/zsmartex/carbonex/risk"
	"github.com/zsmartex/carbonex/routes"
	"github.com/zsmartex/carbonex/routes/middlewares"
	engine "github.com/zsmartex/carbonex/server"
	"github.com/zsmartex/carbonex/services/audit"
	"github.com/zsmartex/carbonex/services/depth_service"
	"github.com/zsmartex/carbonex/services/oracle"
	"github.com/zsmartex/carbonex/services/users"
	"github.com/zsmartex/carbonex/settlement"
	"github.com/zsmartex/carbonex/workers"
	"github.com/zsmartex/carbonex/workers/daemons"
)

func main() {
	config_path := flag.String("config", "config/carbonex.yml", "path to the process configuration")
	flag.Parse()

	cfg, err := config.Load(*config_path)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	config.NewLoggerService(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		config.Logger.Fatalf("[carbonex] %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	db, err := config.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	store := ledger.NewGormStore(db)
	if cfg.Database.Migrate {
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	prices := oracle.Chain{}
	var watchlist compliance.Watchlist = compliance.StaticWatchlist{}
	var cache *config.CacheService
	if cfg.Redis.Enabled() {
		if cache, err = config.NewCacheService(ctx, cfg.Redis); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()

		prices = append(prices, oracle.NewRedisOracle(cache, cfg.PriceMaxAge))
		watchlist = compliance.NewRedisWatchlist(cache)
	}
	prices = append(prices, oracle.NewLastTradeOracle(store))

	var auditor audit.Auditor = audit.LogAuditor{}
	var events *mq_client.Client
	if cfg.Nats.Enabled() {
		conn, err := config.ConnectNats(cfg.Nats)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer func(conn *nats.Conn) {
			if err := conn.Drain(); err != nil {
				config.Logger.Warnf("[carbonex] failed to drain nats: %v", err)
			}
		}(conn)

		events = mq_client.New(conn)
		auditor = audit.NewNatsAuditor(events)
	}

	var recorder settlement.Recorder = settlement.NopRecorder{}
	if cfg.InfluxDB.Enabled() {
		influx, err := config.NewInfluxDB(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connect influxdb: %w", err)
		}
		defer influx.Close()

		recorder = settlement.NewInfluxRecorder(influx)
	}

	complianceGate, err := compliance.NewGate(policy.Compliance, store, prices, watchlist)
	if err != nil {
		return fmt.Errorf("compliance policy: %w", err)
	}

	fees := models.NewFeeSchedule(policy.Fees)
	members := users.NewGormService(db)
	dispatcher := workers.NewDispatcher(cfg.Workers)
	defer dispatcher.Close()

	coordinator := pipeline.New(pipeline.Options{
		Store:      store,
		Members:    members,
		Risk:       risk.NewGate(policy.Risk, store, prices),
		Compliance: complianceGate,
		Settlement: settlement.NewEngine(store, fees, policy.Settlement, settlement.ImmediateConfirmer{}, auditor, recorder),
		Dispatcher: dispatcher,
		Fees:       fees,
		Policy:     policy,
		Auditor:    auditor,
		Events:     events,
	})

	restored, err := coordinator.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover order books: %w", err)
	}
	config.Logger.Infof("[carbonex] restored %d resting orders", restored)

	public_key, err := middlewares.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return fmt.Errorf("parse jwt public key: %w", err)
	}

	app := routes.SetupRouter(routes.Dependencies{
		Pipeline:  coordinator,
		Store:     store,
		Members:   members,
		PublicKey: public_key,
	})

	grpcServer := grpc.NewServer()
	engine.RegisterOrderBookServer(grpcServer, engine.NewEngineServer(coordinator))

	schedules := []daemons.Schedule{
		{Every: cfg.Jobs.ExpireEvery, Job: &cron.ExpireOrdersJob{Orders: coordinator}},
		{Every: cfg.Jobs.SettlementRetryEvery, Job: &cron.SettlementRetryJob{Trades: coordinator}},
	}
	if cache != nil {
		depths := workers.NewDepthWorker(coordinator.Engines(), depth_service.NewDepthService(cache))
		schedules = append(schedules, daemons.Schedule{Every: cfg.Jobs.DepthCacheEvery, Job: &cron.DepthCacheJob{Worker: depths}})
	}
	cronJob := daemons.NewCronJob(schedules...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		config.Logger.Infof("[carbonex] http listening on :%s", cfg.HTTPPort)
		return app.Listen(":" + cfg.HTTPPort)
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return err
		}

		config.Logger.Infof("[carbonex] grpc listening on :%s", cfg.GRPCPort)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		return cronJob.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		config.Logger.Info("[carbonex] shutting down")

		grpcServer.GracefulStop()
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}
