package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost はbcryptのコスト。テストから下げられるよう変数にしている。
var passwordCost = bcrypt.DefaultCost

// ErrPasswordMismatch はパスワードがハッシュと一致しない場合のエラー。
var ErrPasswordMismatch = errors.New("password does not match")

// HashPassword は平文パスワードのbcryptハッシュを返す。
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword は平文パスワードがハッシュと一致するかを検証する。
// 不一致の場合はErrPasswordMismatchを返す。
func CheckPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to compare password: %w", err)
	}
	return nil
}
