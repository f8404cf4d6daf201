// Command schoolportal は書類申請・入学申請ポータルのAPIサーバーとワーカーを起動する。
//
//	schoolportal [serve|worker|migrate|create-admin|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/schoolportal/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
