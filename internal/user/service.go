// Package user はユーザー管理（一覧・ロール変更）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/repository"
)

// Service はユーザー管理のサービス層。super-admin専用の操作を提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// ListUsers は全ユーザーを返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// ChangeRole はユーザーのロールを変更する。
// 操作者自身のロールは変更できない（最後のsuper-adminを失わないため）。
// 新しいロールは次のリクエストから有効になる。トークンの再発行は不要。
func (s *Service) ChangeRole(ctx context.Context, actorID, userID, role string) (*model.User, error) {
	newRole, ok := model.ParseRole(role)
	if !ok {
		return nil, model.NewInvalidRoleError()
	}
	if actorID == userID {
		return nil, model.NewValidationError("You cannot change your own role.")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := s.userRepo.UpdateRole(ctx, userID, newRole); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("ユーザーのロールを変更しました",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
		slog.String("role", string(newRole)),
	)
	return user, nil
}
