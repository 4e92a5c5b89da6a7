package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/config"
	kafkainfra "github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/kafka"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "auditlog",
		Short:        "予約のライフサイクル通知を Kafka から読み、監査ログに書き出す",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg := config.Load()
			if len(cfg.Kafka.Brokers) == 0 {
				return errors.New("KAFKA_BROKERS が設定されていません")
			}

			logger.Set(logger.NewLogger(cfg.Env))
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("監査ログコンシューマー開始",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic),
				zap.String("group", cfg.Kafka.ConsumerGroup))

			reader := kafkainfra.NewReader(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, cfg.Kafka.Topic)
			return kafkainfra.NewConsumer(reader).Start(ctx, auditHandler(logger.Get()))
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "読み込む .env ファイル")
	return cmd
}

// auditHandler は通知を1件ずつ監査ログに書く
// 復元できないメッセージは再試行しても直らないので警告だけ残して進める
func auditHandler(log *zap.Logger) kafkainfra.Handler {
	return func(ctx context.Context, m kafka.Message) error {
		ev, err := kafkainfra.DecodeEvent(m)
		if err != nil {
			log.Warn("malformed lifecycle event",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			return nil
		}
		log.Info("reservation lifecycle",
			zap.String("event", ev.Name()),
			zap.String("event_id", ev.EventID),
			zap.String("reservation_id", ev.ReservationID),
			zap.String("vehicle_id", ev.VehicleID),
			zap.String("holder_id", ev.HolderID),
			zap.Time("at", ev.Timestamp),
			zap.Int64("offset", m.Offset))
		return nil
	}
}
