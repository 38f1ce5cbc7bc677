package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chromatech/advisor/internal/services"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxFrame   = 16 << 10
)

type WSHandler struct {
	chat     services.ChatService
	sessions services.SessionService
	log      *logrus.Logger
	upgrader websocket.Upgrader

	// base is cancelled by Shutdown; open sockets are tracked in conns since
	// http.Server.Shutdown does not wait for hijacked connections.
	base     context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	draining bool
	conns    sync.WaitGroup
}

func NewWSHandler(chat services.ChatService, sessions services.SessionService, log *logrus.Logger, allowedOrigins []string) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	base, stop := context.WithCancel(context.Background())
	return &WSHandler{
		chat:     chat,
		sessions: sessions,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		base:     base,
		stop:     stop,
	}
}

// Shutdown refuses new sockets, cancels the open ones and waits until their
// in-flight turns have returned.
func (h *WSHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.stop()

	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns.Add(1)
	return true
}

// originChecker allows every origin when allowed is empty.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

type wsClientMsg struct {
	Type         string `json:"type"` // chat|end_session
	Message      string `json:"message"`
	SessionToken string `json:"session_token"`
}

type wsAnswerMsg struct {
	Type string `json:"type"`
	*services.ChatResult
}

type wsErrorMsg struct {
	Type string `json:"type"`
	APIError
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (w *wsConn) writeError(err error) error {
	return w.writeJSON(wsErrorMsg{Type: "error", APIError: toAPIError(err)})
}

// Chat serves the storefront widget. Frames on one connection are answered in
// order; the session token of the last answer is reused when a frame omits it.
func (h *WSHandler) Chat(c *gin.Context) {
	userID := optionalUserID(c)

	if !h.track() {
		writeError(c, utils.E(utils.CodeUnavailable, "WSHandler.Chat", "server is shutting down", nil))
		return
	}
	defer h.conns.Done()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// unblock ReadMessage and abort the current turn on shutdown
	stopOnShutdown := context.AfterFunc(h.base, func() {
		cancel()
		_ = conn.Close()
	})
	defer stopOnShutdown()

	conn.SetReadLimit(wsMaxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go func() {
		t := time.NewTicker(wsPingPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := wc.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	token := ""
	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.Chat", "invalid json", err))
			continue
		}
		if msg.SessionToken != "" {
			token = msg.SessionToken
		}

		switch msg.Type {
		case "", "chat":
			res, err := h.chat.HandleChat(ctx, userID, msg.Message, token)
			if err != nil {
				if werr := wc.writeError(err); werr != nil {
					return
				}
				continue
			}
			token = res.SessionToken
			if werr := wc.writeJSON(wsAnswerMsg{Type: "answer", ChatResult: res}); werr != nil {
				return
			}

		case "end_session":
			if token != "" {
				if err := h.sessions.End(ctx, userID, token); err != nil && !utils.IsCode(err, utils.CodeNotFound) {
					h.log.WithError(err).Warn("ws end_session failed")
				}
			}
			_ = wc.writeJSON(gin.H{"type": "ended", "session_token": token})
			return

		default:
			_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.Chat", "unknown message type", nil))
		}
	}
}
