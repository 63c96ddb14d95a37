package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はリレーサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"

	// 以下はリモートAPIを直接呼び出すクライアントコマンド。

	// CommandRegister は会員登録を行う。
	CommandRegister Command = "register"
	// CommandLogin はログインしてセッションを確認する。
	CommandLogin Command = "login"
	// CommandWhoami はログイン中の会員情報を表示する。
	CommandWhoami Command = "whoami"
	// CommandTodos はTODO一覧を表示する。
	CommandTodos Command = "todos"
	// CommandAdd はTODOを作成する。
	CommandAdd Command = "add"
	// CommandDelete は指定したTODOを削除する。
	CommandDelete Command = "delete"
	// CommandLogout はログイン後にセッションを破棄する。
	CommandLogout Command = "logout"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandHealthcheck,
		CommandRegister, CommandLogin, CommandWhoami,
		CommandTodos, CommandAdd, CommandDelete, CommandLogout:
		return cmd
	default:
		return CommandServe
	}
}

// IsClient はリモートAPIを呼び出すクライアントコマンドかどうかを返す。
func (c Command) IsClient() bool {
	switch c {
	case CommandRegister, CommandLogin, CommandWhoami, CommandTodos, CommandAdd, CommandDelete, CommandLogout:
		return true
	default:
		return false
	}
}
