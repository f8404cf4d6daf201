package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/schoolportal/internal/auth"
	"github.com/hitoshi/schoolportal/internal/config"
	"github.com/hitoshi/schoolportal/internal/database"
	"github.com/hitoshi/schoolportal/internal/document"
	"github.com/hitoshi/schoolportal/internal/enrollment"
	"github.com/hitoshi/schoolportal/internal/handler"
	"github.com/hitoshi/schoolportal/internal/inquiry"
	"github.com/hitoshi/schoolportal/internal/logger"
	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/middleware"
	"github.com/hitoshi/schoolportal/internal/notify"
	"github.com/hitoshi/schoolportal/internal/repository"
	"github.com/hitoshi/schoolportal/internal/section"
	"github.com/hitoshi/schoolportal/internal/security"
	"github.com/hitoshi/schoolportal/internal/settings"
	"github.com/hitoshi/schoolportal/internal/stub"
	"github.com/hitoshi/schoolportal/internal/user"
	"github.com/hitoshi/schoolportal/internal/worker"
	"github.com/hitoshi/schoolportal/internal/worker/archive"
	"github.com/hitoshi/schoolportal/internal/worker/overdue"
)

// Init はアプリケーションの初期化を行う。
// 環境変数（と.env）からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateAdmin:
		return runCreateAdmin(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	documentRepo := repository.NewPostgresDocumentRequestRepo(db)
	enrollmentRepo := repository.NewPostgresEnrollmentRepo(db)
	sectionRepo := repository.NewPostgresSectionRepo(db)
	inquiryRepo := repository.NewPostgresInquiryRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	stubRepo := repository.NewPostgresStubRepo(db)

	// 4. ログイン試行ガードと通知チャネル
	attempts, closeAttempts, err := newAttemptStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAttempts()

	notifiers, closeNotifiers, err := newNotifiers(cfg)
	if err != nil {
		return err
	}
	defer closeNotifiers()

	dispatcher := notify.NewDispatcher(notifiers, userRepo, settingsRepo, collector, slog.Default())
	defer dispatcher.Wait()

	// 5. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()

	authService := auth.NewService(
		userRepo, auth.NewTokenIssuer(cfg.JWTSecret), attempts, collector,
		auth.ServiceConfig{MaxAttempts: cfg.LoginMaxAttempts, Lockout: cfg.LoginLockout},
	)
	documentService := document.NewService(documentRepo, settingsRepo, sanitizer, dispatcher, collector)
	enrollmentService := enrollment.NewService(enrollmentRepo, sanitizer, dispatcher, collector)
	sectionService := section.NewService(sectionRepo)
	inquiryService := inquiry.NewService(inquiryRepo, sanitizer, dispatcher, collector)
	settingsService := settings.NewService(settingsRepo)
	stubService := stub.NewService(stubRepo, sanitizer, dispatcher, collector)

	// 6. ルーターの構築（RATE_LIMIT_* はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		HealthChecker:     db,
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService:       authService,
		DocumentService:   documentService,
		EnrollmentService: enrollmentService,
		SectionService:    sectionService,
		InquiryService:    inquiryService,
		UserService:       user.NewService(userRepo),
		SettingsService:   settingsService,
		StubService:       stubService,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限超過チェックと自動アーカイブをそれぞれの間隔で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリと通知
	collector := metrics.NewCollector(prometheus.NewRegistry())
	userRepo := repository.NewPostgresUserRepo(db)
	documentRepo := repository.NewPostgresDocumentRequestRepo(db)
	inquiryRepo := repository.NewPostgresInquiryRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	notifiers, closeNotifiers, err := newNotifiers(cfg)
	if err != nil {
		return err
	}
	defer closeNotifiers()

	dispatcher := notify.NewDispatcher(notifiers, userRepo, settingsRepo, collector, slog.Default())
	defer dispatcher.Wait()

	// 3. ジョブの初期化
	overdueJob := overdue.NewOverdueJob(documentRepo, userRepo, dispatcher, collector, slog.Default())
	archiveJob := archive.NewArchiveJob(documentRepo, inquiryRepo, settingsRepo, collector, slog.Default())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("overdue_check_interval", cfg.OverdueCheckInterval),
		slog.Duration("archive_sweep_interval", cfg.ArchiveSweepInterval),
	)

	// 自動アーカイブをバックグラウンドで起動
	archiveDone := make(chan struct{})
	go func() {
		defer close(archiveDone)
		worker.NewScheduler(archiveJob, slog.Default()).Start(ctx, cfg.ArchiveSweepInterval)
	}()

	// 期限超過チェックをメインgoroutineで実行（ブロッキング）
	worker.NewScheduler(overdueJob, slog.Default()).Start(ctx, cfg.OverdueCheckInterval)
	<-archiveDone

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runCreateAdmin は管理者アカウントを作成する。
// 同じメールアドレスのユーザーが既にいる場合は何もしない。
func runCreateAdmin(cfg *config.Config, args []string) error {
	opts, err := ParseCreateAdminFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authService := auth.NewService(
		repository.NewPostgresUserRepo(db), auth.NewTokenIssuer(cfg.JWTSecret),
		auth.NewMemoryAttemptStore(), metrics.NewCollector(prometheus.NewRegistry()),
		auth.ServiceConfig{},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, created, err := authService.CreateAdmin(ctx, auth.RegisterInput{
		FirstName: opts.FirstName,
		LastName:  opts.LastName,
		Email:     opts.Email,
		Password:  opts.Password,
		Role:      opts.Role,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	if !created {
		slog.Info("admin account already exists",
			slog.String("user_id", admin.ID),
			slog.String("role", string(admin.Role)),
		)
		return nil
	}
	slog.Info("admin account created",
		slog.String("user_id", admin.ID),
		slog.String("role", string(admin.Role)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
