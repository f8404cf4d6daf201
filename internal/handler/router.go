package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/access"
	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/middleware"
	"github.com/hitoshi/schoolportal/internal/model"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	AuthService       AuthServiceInterface
	DocumentService   DocumentServiceInterface
	EnrollmentService EnrollmentServiceInterface
	SectionService    SectionServiceInterface
	InquiryService    InquiryServiceInterface
	UserService       UserServiceInterface
	SettingsService   SettingsServiceInterface
	StubService       StubServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → (LoginRateLimit | Auth → GeneralRateLimit → Gate)
//
// 登録・ログイン・公開設定・/health・/metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))

	authHandler := NewAuthHandler(deps.AuthService)
	docHandler := NewDocumentHandler(deps.DocumentService)
	enrHandler := NewEnrollmentHandler(deps.EnrollmentService)
	secHandler := NewSectionHandler(deps.SectionService)
	inqHandler := NewInquiryHandler(deps.InquiryService)
	userHandler := NewUserHandler(deps.UserService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	r.With(deps.RateLimiter.GeneralMiddleware()).Get("/api/settings/public", settingsHandler.GetPublic)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General) → ロールゲート
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		archiveAccess := middleware.RequireFeature(access.FeatureArchiveAccess)
		inquiryManagement := middleware.RequireFeature(access.FeatureInquiryManagement)

		// 書類申請
		r.Route("/api/documents", func(r chi.Router) {
			r.With(middleware.RequireUser()).Post("/request", docHandler.Submit)
			r.With(middleware.RequireUser()).Get("/my-requests", docHandler.ListMine)
			r.Get("/request/{id}", docHandler.Get)

			r.Route("/admin", func(r chi.Router) {
				r.With(middleware.RequireAnyAdmin()).Get("/requests", docHandler.ListAll)
				r.With(middleware.RequireDocumentAdmin()).Patch("/requests/{id}/status", docHandler.UpdateStatus)
				r.With(middleware.RequireDocumentAdmin()).Post("/bulk-archive-completed", docHandler.BulkArchiveCompleted)

				r.With(archiveAccess).Get("/archived-requests", docHandler.ListArchived)
				r.With(archiveAccess).Patch("/requests/{id}/archive", docHandler.Archive)
				r.With(archiveAccess).Patch("/requests/{id}/restore", docHandler.Restore)
			})
		})

		// 入学申請
		r.Route("/api/enrollments", func(r chi.Router) {
			r.With(middleware.RequireUser()).Post("/", enrHandler.Submit)
			r.Get("/my-status", enrHandler.MyStatus)

			r.With(middleware.RequireAnyAdmin()).Get("/", enrHandler.ListBySection)
			r.With(middleware.RequireAnyAdmin()).Get("/grade/{gradeLevel}", enrHandler.ListByGrade)
			r.With(middleware.RequireAnyAdmin()).Get("/admin", enrHandler.ListAll)
			r.With(archiveAccess).Get("/admin/archived", enrHandler.ListArchived)

			r.Route("/{id}", func(r chi.Router) {
				r.With(middleware.RequireEnrollmentAdmin()).Put("/status", enrHandler.UpdateStatus)
				r.With(archiveAccess).Patch("/archive", enrHandler.Archive)
				r.With(archiveAccess).Patch("/restore", enrHandler.Restore)
			})
		})

		// セクション
		r.Route("/api/sections", func(r chi.Router) {
			r.With(middleware.RequireEnrollmentAdmin()).Post("/", secHandler.Create)
			r.With(middleware.RequireAnyAdmin()).Get("/", secHandler.List)
			r.With(middleware.RequireAnyAdmin()).Get("/grade/{gradeLevel}", secHandler.ListByGrade)
		})

		// 問い合わせ
		r.Route("/api/inquiries", func(r chi.Router) {
			r.With(middleware.RequireUser()).Post("/", inqHandler.Submit)
			r.With(middleware.RequireUser()).Get("/my-inquiries", inqHandler.ListMine)

			r.Route("/admin", func(r chi.Router) {
				r.Use(inquiryManagement)
				r.Get("/", inqHandler.ListAll)
				r.Get("/archived", inqHandler.ListArchived)
				r.Post("/archive-closed", inqHandler.ArchiveClosed)
				r.Patch("/{id}/status", inqHandler.UpdateStatus)
				r.Post("/{id}/reply", inqHandler.Reply)
				r.Patch("/{id}/archive", inqHandler.Archive)
				r.Patch("/{id}/restore", inqHandler.Restore)
			})
		})

		// Form 137/138 受取票
		qrVerification := middleware.RequireFeature(access.FeatureQRVerification)
		for path, form := range map[string]model.StubForm{
			"/api/form137-stubs": model.StubForm137,
			"/api/form138-stubs": model.StubForm138,
		} {
			stubHandler := NewStubHandler(deps.StubService, form)
			r.Route(path, func(r chi.Router) {
				r.With(middleware.RequireUser()).Post("/create", stubHandler.Create)
				r.With(middleware.RequireUser()).Get("/my-stubs", stubHandler.ListMine)
				r.Get("/{id}", stubHandler.Get)

				r.With(qrVerification).Get("/", stubHandler.List)
				r.With(qrVerification).Put("/{id}/status", stubHandler.UpdateStatus)
				r.With(qrVerification).Get("/verify/{stubCode}", stubHandler.Verify)
			})
		}

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin())
			r.Get("/", userHandler.ListUsers)
			r.Patch("/{id}/role", userHandler.ChangeRole)
		})

		// 学校設定
		systemSettings := middleware.RequireFeature(access.FeatureSystemSettings)
		r.With(systemSettings).Get("/api/settings", settingsHandler.Get)
		r.With(systemSettings).Put("/api/settings", settingsHandler.Update)
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
