package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/schoolportal/internal/auth"
	"github.com/hitoshi/schoolportal/internal/config"
	"github.com/hitoshi/schoolportal/internal/database"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/notify"
)

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newAttemptStore はログイン失敗回数の保存先を返す。
// REDIS_URLが未設定ならプロセス内メモリを使う。
func newAttemptStore(ctx context.Context, cfg *config.Config) (auth.AttemptStore, func(), error) {
	if cfg.RedisURL == "" {
		return auth.NewMemoryAttemptStore(), func() {}, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := auth.NewRedisClient(pingCtx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("login attempts are stored in redis")
	return auth.NewRedisAttemptStore(client), func() { client.Close() }, nil
}

// newNotifiers は設定された通知チャネルを構築する。
// SMTP_HOST・KAFKA_BROKERSが未設定のチャネルは無効。
// メール署名の学校名は送信ごとに学校設定から読むため、ここでは既定値のみ渡す。
func newNotifiers(cfg *config.Config) ([]notify.Notifier, func(), error) {
	var notifiers []notify.Notifier
	closers := []func(){}

	if cfg.SMTPHost != "" {
		mailer, err := notify.NewMailer(notify.MailerConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			From:       cfg.SMTPFrom,
			SchoolName: model.DefaultSettings().SchoolName,
		})
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, mailer)
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, publisher)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("failed to close kafka writer", slog.String("error", err.Error()))
			}
		})
	}

	names := make([]string, 0, len(notifiers))
	for _, n := range notifiers {
		names = append(names, n.Name())
	}
	slog.Info("notification channels configured", slog.Any("channels", names))

	return notifiers, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
