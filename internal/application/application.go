package application

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"groupbuy_market/internal/config"
	"groupbuy_market/internal/domain/service/admission"
	dealservice "groupbuy_market/internal/domain/service/deal"
	"groupbuy_market/internal/domain/service/funnel"
	"groupbuy_market/internal/domain/service/pricing"
	"groupbuy_market/internal/infrastructure/notifier"
	"groupbuy_market/internal/infrastructure/persistence"
	"groupbuy_market/internal/server"
	"groupbuy_market/internal/worker"
	"groupbuy_market/pkg/application/connectors"
	"groupbuy_market/pkg/application/modules"
	"groupbuy_market/pkg/logx"
	"groupbuy_market/pkg/middlewarex"
)

const (
	appName    = "groupbuy-market"
	appVersion = "v1.0.0"
)

func Run(ctx context.Context) error {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	// 2. Database
	pg := &connectors.Postgres{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
	db := pg.Client(ctx)
	defer pg.Close(ctx)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}

	// 3. Redis
	rds := &connectors.Redis{
		Address:            cfg.Redis.Address,
		Username:           cfg.Redis.Username,
		Password:           cfg.Redis.Password,
		DatabaseNumber:     cfg.Redis.DatabaseNumber,
		PoolSize:           cfg.Redis.PoolSize,
		MinIdleConnections: cfg.Redis.MinIdleConnections,
		MaxIdleConnections: cfg.Redis.MaxIdleConnections,
	}
	redisClient := rds.Client(ctx)
	defer rds.Close(ctx)

	// 4. Repositories
	dealRepo := persistence.NewDealRepository(db)
	regRepo := persistence.NewRegistrationRepository(db)

	// 5. Domain services
	calc := pricing.NewCalculator(cfg.Platform.DefaultCommissionPercent)
	funnelEngine := funnel.NewEngine()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DatabaseNumber,
	})
	defer asynqClient.Close()

	enqueuer := worker.NewWaitlistEnqueuer(asynqClient)

	admissionCtrl := admission.NewController(dealRepo, regRepo, calc, funnelEngine, enqueuer)
	dealSvc := dealservice.NewService(dealRepo, funnelEngine)

	// 6. HTTP server
	masker := logx.NewSensitiveDataMasker()

	router := chi.NewRouter()
	router.Use(
		middlewarex.TraceID,
		middlewarex.Logger,
		middlewarex.Recovery,
		middlewarex.RequestLogging(masker, cfg.Server.LogFieldMaxLen),
		middlewarex.ResponseLogging(masker, cfg.Server.LogFieldMaxLen),
	)

	srv := server.NewServer(server.NewDealServer(dealSvc, admissionCtrl, funnelEngine))
	srv.RegisterRoutes(router)

	g, ctx := errgroup.WithContext(ctx)

	httpModule := modules.HTTPServer{ShutdownTimeout: cfg.Server.ShutdownTimeout}
	httpModule.Run(ctx, g, &http.Server{ //nolint:exhaustruct
		Addr:    cfg.Server.ListenAddress,
		Handler: router,
	})

	probeModule := modules.ProbeServer{
		Name:          appName,
		Version:       appVersion,
		ListenAddress: cfg.Server.ProbeListenAddress,
	}
	probeModule.Run(ctx, g)

	metricModule := modules.MetricServer{ListenAddress: cfg.Server.MetricsListenAddress}
	metricModule.Run(ctx, g)

	// 7. Waitlist promotion worker
	asynqModule := modules.AsynqServer{
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisAddress:  cfg.Redis.Address,
		RedisDB:       cfg.Redis.DatabaseNumber,
	}
	asynqModule.Run(ctx, g,
		modules.AsynqQueues{"default": 1},
		modules.AsynqHandler{
			Pattern: worker.TypeWaitlistPromote,
			Handle:  worker.HandleWaitlistPromote(admissionCtrl),
		},
	)

	// 8. Deal monitor + tier alerts
	alerts := make(chan worker.TierAlert, 100)

	monitor := worker.NewDealMonitor(dealRepo, calc, redisClient, alerts).
		WithScanInterval(cfg.Platform.MonitorScanInterval)

	g.Go(func() error {
		defer close(alerts)

		if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("monitor.Run: %w", err)
		}

		return nil
	})

	if cfg.Bot.Enabled {
		alertBot, err := notifier.NewTelegramBot(cfg.Bot.Token, cfg.Bot.ChatID)
		if err != nil {
			return fmt.Errorf("notifier bot: %w", err)
		}

		g.Go(func() error {
			if err := alertBot.Run(ctx, alerts); err != nil && ctx.Err() == nil {
				return fmt.Errorf("alertBot.Run: %w", err)
			}

			return nil
		})
	} else {
		g.Go(func() error {
			for range alerts { //nolint:revive // канал нужно вычитывать и без бота
			}

			return nil
		})
	}

	return g.Wait()
}
