// Package auth はアカウント登録・ログイン・トークン検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/repository"
)

// RegisterInput は登録・管理者作成の入力。
// json タグはバリデーションエラーのフィールド名に使われる。
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// Validate は必須項目とメールアドレス形式を検証する。
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(1, 72)),
	)
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string
	User  *model.User
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	MaxAttempts int           // ロックアウトまでの連続失敗回数（0以下で無効）
	Lockout     time.Duration // 失敗回数の保持期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	attempts AttemptStore
	metrics  metrics.MetricsCollector
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokens *TokenIssuer,
	attempts AttemptStore,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		attempts: attempts,
		metrics:  collector,
		config:   config,
	}
}

// Register は一般ユーザーを登録する。
// ロールが指定された場合、"user" 以外はInvalidRoleとして拒否する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = model.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := in.Validate(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	if in.Role != "" && in.Role != string(model.DefaultRole) {
		return nil, model.NewInvalidRoleError()
	}

	user, err := s.createUser(ctx, in, model.DefaultRole)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration()
	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// CreateAdmin は指定ロールのアカウントを作成する。
// 同じメールアドレスが既に存在する場合は既存ユーザーをそのまま返し、createdはfalseになる。
func (s *Service) CreateAdmin(ctx context.Context, in RegisterInput) (user *model.User, created bool, err error) {
	in.Email = model.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := in.Validate(); err != nil {
		return nil, false, model.NewValidationError(err.Error())
	}

	role, ok := model.ParseRole(in.Role)
	if !ok {
		return nil, false, model.NewInvalidRoleError()
	}

	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	user, err = s.createUser(ctx, in, role)
	if err != nil {
		return nil, false, err
	}

	slog.Info("管理者アカウントを作成しました",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, true, nil
}

func (s *Service) createUser(ctx context.Context, in RegisterInput, role model.Role) (*model.User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェックと作成の間に同じメールアドレスが登録された場合
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate はメールアドレスとパスワードを検証する。
// 未登録メールアドレスとパスワード不一致は同一のエラーを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, err
	}
	return user, nil
}

// Login は認証に成功したユーザーへトークンを発行する。
// 連続失敗回数がMaxAttemptsに達したメールアドレスはLockoutの間ログインできない。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	key := model.NormalizeEmail(email)

	if s.config.MaxAttempts > 0 {
		failures, err := s.attempts.Failures(ctx, key)
		if err != nil {
			return nil, err
		}
		if failures >= s.config.MaxAttempts {
			s.metrics.RecordLogin(metrics.LoginLocked)
			slog.Warn("ログイン試行回数の上限に達しています", slog.Int("failures", failures))
			return nil, model.NewTooManyAttemptsError()
		}
	}

	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials {
			s.metrics.RecordLogin(metrics.LoginFailure)
			if s.config.MaxAttempts > 0 {
				if _, recErr := s.attempts.RecordFailure(ctx, key, s.config.Lockout); recErr != nil {
					slog.Error("ログイン失敗の記録に失敗しました", slog.String("error", recErr.Error()))
				}
			}
		}
		return nil, err
	}

	if s.config.MaxAttempts > 0 {
		if err := s.attempts.Reset(ctx, key); err != nil {
			slog.Error("ログイン失敗回数のリセットに失敗しました", slog.String("error", err.Error()))
		}
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.Info("ログインしました", slog.String("user_id", user.ID))
	return &LoginResult{Token: token, User: user}, nil
}

// Verify はトークンを検証し、現在のユーザーレコードを返す。
// ロールはトークンではなくユーザーレコードの値が正となる。
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewMissingTokenError()
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, model.NewInvalidTokenError()
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidTokenError()
	}
	return user, nil
}
