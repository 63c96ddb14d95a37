// Package session はプロセス全体で共有する認証状態を保持する。
//
// 状態遷移は idle → loading → {authenticated, unauthenticated} と
// ログアウト（→ unauthenticated）に限られる。各認証チェックは世代番号で識別され、
// 新しいチェックが開始された後に届いた古いチェックの結果は破棄される。
package session

import (
	"sync"

	"github.com/hitoshi/taskfront/internal/model"
)

// Generation は認証チェック1回ごとに払い出される世代番号。
type Generation uint64

// Snapshot はある時点の認証状態。
type Snapshot struct {
	User        *model.Member
	Phase       model.Phase
	DisplayName string
}

// Reader は認証状態の読み取りインターフェース。
type Reader interface {
	User() *model.Member
	Phase() model.Phase
	DisplayName() string
	IsAuthenticated() bool
	Snapshot() Snapshot
}

// Writer は認証状態の書き込みインターフェース。
// 認証チェックとログアウトのフローのみが使用する。
type Writer interface {
	BeginCheck() Generation
	Resolve(gen Generation, member *model.Member) bool
	Logout()
}

// ReadWriter はReaderとWriterの両方を満たす。
type ReadWriter interface {
	Reader
	Writer
}

// Store は認証状態のコンテナ。
// phase が authenticated のときに限り user は非nilとなる。
type Store struct {
	mu    sync.RWMutex
	user  *model.Member
	phase model.Phase
	gen   Generation
	// version は状態を変更するたびに増える。通知の順序付けに使う。
	version uint64

	pubMu     sync.Mutex
	delivered uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

var _ ReadWriter = (*Store)(nil)

// NewStore は idle 状態のStoreを生成する。
func NewStore() *Store {
	return &Store{
		phase: model.PhaseIdle,
		subs:  make(map[int]func(Snapshot)),
	}
}

// User は現在のユーザーのコピーを返す。未認証の場合はnil。
func (s *Store) User() *model.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMember(s.user)
}

// Phase は現在の認証フェーズを返す。
func (s *Store) Phase() model.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// DisplayName は「姓 名」形式の表示名を返す。ユーザーがいない場合は空文字列。
func (s *Store) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.DisplayName()
}

// IsAuthenticated は認証済みかどうかを返す。
func (s *Store) IsAuthenticated() bool {
	return s.Phase() == model.PhaseAuthenticated
}

// Snapshot は現在の状態をまとめて返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		User:  copyMember(s.user),
		Phase: s.phase,
	}
	if s.user != nil {
		snap.DisplayName = s.user.DisplayName()
	}
	return snap
}

// changedLocked は変更後の状態とその版番号を返す。s.mu を保持して呼ぶこと。
func (s *Store) changedLocked() (Snapshot, uint64) {
	s.version++
	return s.snapshotLocked(), s.version
}

// BeginCheck は新しい認証チェックを開始し、その世代番号を返す。
// フェーズは loading になり、ユーザーは結果が確定するまでクリアされる。
func (s *Store) BeginCheck() Generation {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.phase = model.PhaseLoading
	s.user = nil
	snap, version := s.changedLocked()
	s.mu.Unlock()

	s.publish(snap, version)
	return gen
}

// Resolve は世代genの認証チェック結果を反映する。
// memberが非nilなら authenticated、nilなら unauthenticated になる。
// genが最新でない場合は何も変更せずfalseを返す。
func (s *Store) Resolve(gen Generation, member *model.Member) bool {
	s.mu.Lock()
	if gen != s.gen || s.phase != model.PhaseLoading {
		s.mu.Unlock()
		return false
	}
	if member != nil {
		s.user = copyMember(member)
		s.phase = model.PhaseAuthenticated
	} else {
		s.user = nil
		s.phase = model.PhaseUnauthenticated
	}
	snap, version := s.changedLocked()
	s.mu.Unlock()

	s.publish(snap, version)
	return true
}

// Logout はユーザーをクリアして unauthenticated にする。
// 実行中の認証チェックの結果はその後破棄される。
func (s *Store) Logout() {
	s.mu.Lock()
	s.gen++
	s.user = nil
	s.phase = model.PhaseUnauthenticated
	snap, version := s.changedLocked()
	s.mu.Unlock()

	s.publish(snap, version)
}

// Subscribe は状態変更の通知先を登録し、登録解除関数を返す。
// 通知は変更を行ったgoroutine上で変更順に同期的に行う。
// 並行した変更で古い状態の通知が遅れた場合、その通知は届かない。
// 通知先からStoreの状態を変更してはならない。
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(snap Snapshot, version uint64) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func copyMember(m *model.Member) *model.Member {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
