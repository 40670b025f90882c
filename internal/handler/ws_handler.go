package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/hitoshi/kizuna/internal/relay"
)

// DefaultRelaySendTimeout は1回の送信に許す書き込み時間の既定値。
const DefaultRelaySendTimeout = 5 * time.Second

// RelayRegistry はWebSocketハンドラーが必要とする接続レジストリの操作。
type RelayRegistry interface {
	Connect(userID string, ch relay.Channel) *relay.Conn
	Release(conn *relay.Conn)
	Broadcast(senderID, payload string) relay.BroadcastResult
}

// wsChannel はWebSocket接続をrelay.Channelとして扱う。
type wsChannel struct {
	ws          *websocket.Conn
	sendTimeout time.Duration
}

// Send はpayloadをテキストフレームとして送信する。
// 遅い受信者で配信全体が止まらないよう、送信ごとに書き込み期限を設定する。
func (c *wsChannel) Send(payload string) error {
	if c.sendTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
			return err
		}
	}
	return websocket.Message.Send(c.ws, payload)
}

func (c *wsChannel) Close() error {
	return c.ws.Close()
}

// WSHandler はメッセージ中継のWebSocketハンドラー。
type WSHandler struct {
	registry    RelayRegistry
	sendTimeout time.Duration
}

// NewWSHandler はWSHandlerを生成する。sendTimeoutが0以下の場合は既定値を使う。
func NewWSHandler(registry RelayRegistry, sendTimeout time.Duration) *WSHandler {
	if sendTimeout <= 0 {
		sendTimeout = DefaultRelaySendTimeout
	}
	return &WSHandler{
		registry:    registry,
		sendTimeout: sendTimeout,
	}
}

// Relay はWebSocket接続を確立し、受信したメッセージを他の全接続へ中継する。
// WS /ws/{sender_id}
func (h *WSHandler) Relay(w http.ResponseWriter, r *http.Request) {
	senderID := chi.URLParam(r, "sender_id")

	server := websocket.Server{
		// ブラウザ以外のクライアントも受け入れるためOriginは検証しない
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(ws *websocket.Conn) {
			h.serve(ws, senderID)
		},
	}
	server.ServeHTTP(w, r)
}

// serve は接続が閉じるまで受信ループを回す。
// 中継は受信ループから同期的に行うため、送信者ごとのメッセージ順序は保たれる。
func (h *WSHandler) serve(ws *websocket.Conn, senderID string) {
	conn := h.registry.Connect(senderID, &wsChannel{ws: ws, sendTimeout: h.sendTimeout})
	defer h.registry.Release(conn)

	for {
		var payload string
		if err := websocket.Message.Receive(ws, &payload); err != nil {
			if !errors.Is(err, io.EOF) && conn.State() == relay.StateOpen {
				slog.Debug("WebSocketの受信を終了しました",
					slog.String("user_id", senderID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		result := h.registry.Broadcast(senderID, payload)
		slog.Debug("メッセージを中継しました",
			slog.String("sender_id", senderID),
			slog.Int("delivered", result.Delivered),
			slog.Int("failed", result.Failed),
		)
	}
}
