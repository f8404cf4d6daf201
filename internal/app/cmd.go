package app

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（期限超過チェック・自動アーカイブ）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandCreateAdmin は管理者アカウントを作成することを示す。
	CommandCreateAdmin Command = "create-admin"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "create-admin":
		return CommandCreateAdmin
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// CreateAdminOptions はcreate-adminサブコマンドの引数。
type CreateAdminOptions struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// ParseCreateAdminFlags はcreate-admin以降の引数を解析する。
// -passwordが省略された場合は環境変数ADMIN_PASSWORDを使う。
func ParseCreateAdminFlags(args []string, output io.Writer) (CreateAdminOptions, error) {
	var opts CreateAdminOptions

	fs := flag.NewFlagSet(string(CommandCreateAdmin), flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.Email, "email", "", "管理者のメールアドレス（必須）")
	fs.StringVar(&opts.Password, "password", "", "初期パスワード（省略時はADMIN_PASSWORD）")
	fs.StringVar(&opts.FirstName, "first-name", "System", "名")
	fs.StringVar(&opts.LastName, "last-name", "Administrator", "姓")
	fs.StringVar(&opts.Role, "role", "super-admin", "ロール（admin, admin-document, admin-enrollment, super-admin）")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Password == "" {
		opts.Password = os.Getenv("ADMIN_PASSWORD")
	}
	if opts.Email == "" || opts.Password == "" {
		return opts, fmt.Errorf("create-admin requires -email and -password (or ADMIN_PASSWORD)")
	}
	return opts, nil
}
