// Package model はドメインモデルを定義する。
package model

// Member はログイン中の会員情報を表す。
// name1 が姓、name2 が名に対応する。
type Member struct {
	Name1    string
	Name2    string
	MemberID int64
}

// DisplayName は「姓 名」形式の表示名を返す。
func (m Member) DisplayName() string {
	return m.Name1 + " " + m.Name2
}

// Phase は認証チェックの進行状態を表す。
type Phase string

const (
	// PhaseIdle は認証チェック未実行の状態。
	PhaseIdle Phase = "idle"
	// PhaseLoading は認証チェック実行中の状態。
	PhaseLoading Phase = "loading"
	// PhaseAuthenticated は認証済みの状態。
	PhaseAuthenticated Phase = "authenticated"
	// PhaseUnauthenticated は未認証の状態。
	PhaseUnauthenticated Phase = "unauthenticated"
)

// IsTerminal は認証チェックが完了した状態かどうかを返す。
func (p Phase) IsTerminal() bool {
	return p == PhaseAuthenticated || p == PhaseUnauthenticated
}
