package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/handler"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/router"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/config"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/broker"
	kafkainfra "github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/kafka"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/worker"
)

type serveOptions struct {
	envFile string
	store   string
	port    string
	noSweep bool
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "HTTP サーバーを起動する",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "読み込む .env ファイル")
	cmd.Flags().StringVar(&opts.store, "store", "", "ストア (memory|postgres)。未指定なら STORE_BACKEND")
	cmd.Flags().StringVar(&opts.port, "port", "", "待ち受けポート。未指定なら PORT")
	cmd.Flags().BoolVar(&opts.noSweep, "no-sweep", false, "未引き渡し予約のスイーパーを起動しない")

	return cmd
}

// stores はストア実装と後始末をまとめたもの
type stores struct {
	reservations reservation.Repository
	vehicles     vehicle.Repository
	db           *sqlx.DB
}

func (s *stores) close() {
	if s.db != nil {
		s.db.Close()
	}
}

func openStores(cfg *config.Config, health *handler.HealthHandler) (*stores, error) {
	switch cfg.Store {
	case "memory":
		logger.Warn("インメモリストアで起動します。再起動でデータは失われます")
		return &stores{
			reservations: memory.NewReservationStore(),
			vehicles:     memory.NewVehicleRepository(),
		}, nil
	case "postgres":
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
		health.WithCheck("postgres", func(ctx context.Context) error { return postgres.Ping(ctx, db) })
		return &stores{
			reservations: postgres.NewReservationRepository(db),
			vehicles:     postgres.NewVehicleRepository(db),
			db:           db,
		}, nil
	default:
		return nil, fmt.Errorf("未知のストア: %q", cfg.Store)
	}
}

func runServe(ctx context.Context, opts *serveOptions) error {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return fmt.Errorf(".env の読み込みに失敗: %w", err)
	}
	cfg := config.Load()
	if opts.store != "" {
		cfg.Store = opts.store
	}
	if opts.port != "" {
		cfg.Server.Port = opts.port
	}

	logger.Set(logger.NewLogger(cfg.Env))
	defer logger.Sync()
	m := metrics.Init()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := handler.NewHealthHandler()
	st, err := openStores(cfg, health)
	if err != nil {
		return err
	}
	defer st.close()

	owners := application.NewVehicleOwnerLookup(st.vehicles)
	serviceOpts := []application.Option{
		application.WithAuthorizer(application.NewOwnershipAuthorizer(owners)),
		application.WithPricer(application.NewHourlyRatePricer(st.vehicles)),
		application.WithRetryPolicy(application.RetryPolicy{
			MaxAttempts: cfg.Booking.MaxAttempts,
			BaseDelay:   cfg.Booking.BaseDelay,
			MaxDelay:    cfg.Booking.MaxDelay,
			Jitter:      cfg.Booking.Jitter,
			Deadline:    cfg.Booking.RetryDeadline,
		}),
		application.WithMetrics(m),
	}

	if cfg.Redis.Enabled {
		client, err := redisinfra.NewClient(&redisinfra.Config{
			Host: cfg.Redis.Host, Port: cfg.Redis.Port,
			Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
		if err != nil {
			// ロックとキャッシュは最適化なので Redis なしでも起動する
			logger.Warn("Redis に接続できないためロックと冪等性キャッシュを無効にします", zap.Error(err))
		} else {
			defer client.Close()
			serviceOpts = append(serviceOpts,
				application.WithLockManager(redisinfra.NewLockManager(client), application.LockOptions{
					TTL:        cfg.Booking.LockTTL,
					Retries:    cfg.Booking.LockRetries,
					RetryDelay: cfg.Booking.LockRetryDelay,
				}),
				application.WithIdempotencyCache(redisinfra.NewIdempotencyCache(client, cfg.Booking.IdempotencyTTL)),
			)
			health.WithCheck("redis", func(ctx context.Context) error { return redisinfra.Ping(ctx, client) })
		}
	}

	events := broker.New(cfg.Booking.EventBufferSize, m)
	defer events.Close()
	notifiers := reservation.Notifiers{events}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafkainfra.NewProducer(kafkainfra.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, m), cfg.Kafka.BufferSize)
		producer.Start(context.WithoutCancel(ctx))
		defer func() {
			producer.Close()
			producer.WaitClosed()
		}()
		notifiers = append(notifiers, kafkainfra.NewNotifier(producer, m))
		logger.Info("ライフサイクル通知を Kafka に送信します",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	serviceOpts = append(serviceOpts, application.WithNotifier(notifiers))

	reservationService := application.NewReservationService(st.reservations, serviceOpts...)
	vehicleService := application.NewVehicleService(st.vehicles)

	e := router.NewRouter(router.Deps{
		Reservations: reservationService,
		Vehicles:     vehicleService,
		Events:       events,
		Owners:       owners,
		Health:       health,
		Metrics:      m,
		MetricsAuth:  cfg.Metrics,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	// SSE の接続を切らないよう WriteTimeout は設定しない

	if !opts.noSweep {
		sweeper := worker.NewNoShowSweeper(reservationService, cfg.Booking.NoShowInterval, cfg.Booking.NoShowGrace)
		go sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("サーバー起動",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store),
			zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("サーバー起動エラー: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("サーバーをシャットダウンしています...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}
	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}
