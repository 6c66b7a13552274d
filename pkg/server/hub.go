package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shouni/gemini-prompt-kit/pkg/lifecycle"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub はライフサイクルのスナップショットを接続中の全クライアントへ配信します。
// クライアントごとに Watch で購読するため、接続時点の状態とその後の変更が必ず順に届きます。
type Hub struct {
	lc Lifecycle

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn        *websocket.Conn
	send        chan []byte
	unsubscribe func()
}

// NewHub は Hub を作成します。
func NewHub(lc Lifecycle) *Hub {
	return &Hub{
		lc:      lc,
		clients: make(map[*client]struct{}),
	}
}

// ServeWS は接続を WebSocket にアップグレードし、現在のスナップショットから配信を始めます。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "WebSocket へのアップグレードに失敗しました", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	unsubscribe := h.lc.Watch(func(s lifecycle.Snapshot) {
		h.deliver(c, s)
	})

	h.mu.Lock()
	c.unsubscribe = unsubscribe
	_, alive := h.clients[c]
	h.mu.Unlock()
	if !alive {
		// 登録直後に切断された場合
		unsubscribe()
	}

	go c.writePump()
	go h.readPump(c)
}

// deliver は通知の流れを止めないよう、受信が追いつかないクライアントを切断します。
func (h *Hub) deliver(c *client, s lifecycle.Snapshot) {
	msg, err := json.Marshal(s)
	if err != nil {
		slog.Error("スナップショットのエンコードに失敗しました", "error", err)
		return
	}

	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	var unsubscribe func()
	select {
	case c.send <- msg:
	default:
		slog.Warn("送信が詰まったクライアントを切断します", "remote", c.conn.RemoteAddr().String())
		unsubscribe = h.dropLocked(c)
	}
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Close は全クライアントを切断し、購読を解除します。
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var unsubscribes []func()
	for c := range h.clients {
		if unsubscribe := h.dropLocked(c); unsubscribe != nil {
			unsubscribes = append(unsubscribes, unsubscribe)
		}
	}
	h.mu.Unlock()

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	unsubscribe := h.dropLocked(c)
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// dropLocked は c を外して送信チャネルを閉じ、購読解除の関数を返します。
// 購読前に外された場合は nil を返し、ServeWS 側で解除します。
func (h *Hub) dropLocked(c *client) func() {
	if _, ok := h.clients[c]; !ok {
		return nil
	}
	delete(h.clients, c)
	close(c.send)
	return c.unsubscribe
}

// readPump はクライアントからのメッセージを読み捨て、切断を検知します。
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("WebSocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
