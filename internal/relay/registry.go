// Package relay はユーザーIDごとの接続を管理し、接続中の他ユーザーへメッセージを配信する。
package relay

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrConnClosed はクローズ済みの接続への送信を表す。
var ErrConnClosed = errors.New("relay: connection closed")

// Channel は1つのクライアントとの双方向通信路。
type Channel interface {
	Send(payload string) error
	Close() error
}

// State は接続の状態。
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn はレジストリに登録された接続。
// 書き込みは接続ごとに直列化される。
type Conn struct {
	userID    string
	ch        Channel
	state     atomic.Int32
	sendMu    sync.Mutex
	closeOnce sync.Once
}

func newConn(userID string, ch Channel) *Conn {
	c := &Conn{userID: userID, ch: ch}
	c.state.Store(int32(StateConnecting))
	return c
}

// UserID は接続の所有者のユーザーIDを返す。
func (c *Conn) UserID() string { return c.userID }

// State は現在の状態を返す。
func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) send(payload string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.State() != StateOpen {
		return ErrConnClosed
	}
	return c.ch.Send(payload)
}

func (c *Conn) close() {
	c.state.Store(int32(StateClosed))
	c.closeOnce.Do(func() {
		c.ch.Close()
	})
}

// Recorder はレジストリの状態と配信結果を記録する。
type Recorder interface {
	SetRelayConnections(n int)
	RecordBroadcast(delivered, failed int)
}

// BroadcastResult は1回の配信の結果。
type BroadcastResult struct {
	Delivered int
	Failed    int
}

// Registry はユーザーIDから接続へのマップ。ユーザーごとに接続は高々1つ。
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Conn
	logger   *slog.Logger
	recorder Recorder
}

// NewRegistry は空のRegistryを生成する。recorderはnilでもよい。
func NewRegistry(logger *slog.Logger, recorder Recorder) *Registry {
	return &Registry{
		conns:    make(map[string]*Conn),
		logger:   logger,
		recorder: recorder,
	}
}

// Connect はchをuserIDの接続として登録する。既存の接続は置き換えられクローズされる。
func (r *Registry) Connect(userID string, ch Channel) *Conn {
	conn := newConn(userID, ch)

	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	conn.state.Store(int32(StateOpen))
	n := len(r.conns)
	r.mu.Unlock()

	if prev != nil {
		prev.close()
		r.logger.Info("既存の接続を置き換えました", slog.String("user_id", userID))
	}
	r.logger.Info("接続を登録しました",
		slog.String("user_id", userID),
		slog.Int("connections", n),
	)
	r.setConnections(n)
	return conn
}

// Disconnect はuserIDの接続を削除してクローズする。未登録の場合は何もしない。
func (r *Registry) Disconnect(userID string) {
	r.mu.Lock()
	conn, ok := r.conns[userID]
	if ok {
		delete(r.conns, userID)
	}
	n := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return
	}
	conn.close()
	r.logger.Info("接続を削除しました", slog.String("user_id", userID))
	r.setConnections(n)
}

// Release はトランスポート側の終了処理。connが現在の登録である場合のみ削除する。
// 置き換え済みの古い接続の終了が新しい接続を削除することはない。
func (r *Registry) Release(conn *Conn) {
	r.mu.Lock()
	current := r.conns[conn.userID] == conn
	if current {
		delete(r.conns, conn.userID)
	}
	n := len(r.conns)
	r.mu.Unlock()

	conn.close()
	if current {
		r.logger.Info("接続が終了しました", slog.String("user_id", conn.userID))
		r.setConnections(n)
	}
}

// Broadcast はsenderID以外のOpen状態の接続すべてにpayloadを送信する。
// 送信失敗は記録のみで再送せず、他の接続への配信は継続する。
func (r *Registry) Broadcast(senderID, payload string) BroadcastResult {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.conns))
	for id, conn := range r.conns {
		if id == senderID || conn.State() != StateOpen {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	var result BroadcastResult
	for _, conn := range targets {
		if err := conn.send(payload); err != nil {
			result.Failed++
			r.logger.Warn("メッセージの配信に失敗しました",
				slog.String("sender_id", senderID),
				slog.String("receiver_id", conn.userID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Delivered++
	}

	if r.recorder != nil {
		r.recorder.RecordBroadcast(result.Delivered, result.Failed)
	}
	return result
}

// Len は登録中の接続数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll は全接続をクローズしてレジストリを空にする。サーバー停止時に呼ぶ。
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	if len(conns) > 0 {
		r.logger.Info("全接続をクローズしました", slog.Int("connections", len(conns)))
	}
	r.setConnections(0)
}

func (r *Registry) setConnections(n int) {
	if r.recorder != nil {
		r.recorder.SetRelayConnections(n)
	}
}
