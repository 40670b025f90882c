package app

import (
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHTTP APIとWebSocketリレーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れステータスと古い通知の定期クリーンアップを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp はサブコマンドの一覧を表示する。
	CommandHelp Command = "help"
)

// commands はサブコマンドと説明の一覧。usage表示の順序を兼ねる。
var commands = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "start the HTTP API and websocket relay (default)"},
	{CommandWorker, "run periodic status expiry and notification cleanup"},
	{CommandMigrate, "apply pending database migrations"},
	{CommandHealthcheck, "check /health on the local server (PORT, default 8080)"},
	{CommandHelp, "show this help"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "-h", "--help":
		return CommandHelp
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandServe
}

// WriteUsage はサブコマンドの一覧をwに書き込む。
func WriteUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: kizuna [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.summary)
	}
}
