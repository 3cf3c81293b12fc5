package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/realtime"
	"github.com/zhouzirui/chat-widget/internal/relay"
	"github.com/zhouzirui/chat-widget/pkg/utils"
)

// Handler 中继的HTTP处理器：WebSocket、SSE 与 HTTP 发布
type Handler struct {
	hub          *relay.Hub
	upgrader     websocket.Upgrader
	heartbeat    time.Duration
	maxBodyBytes int64
}

// New 创建中继处理器
func New(hub *relay.Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
		heartbeat:    15 * time.Second,
		maxBodyBytes: relay.DefaultHubOptions().MaxFrameBytes,
	}
}

// RegisterRoutes 注册中继路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/events", h.handleEvents)
	r.Post("/publish", h.handlePublish)
}

// handleWebSocket 升级连接并交给 hub 处理
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("[websocket] upgrade failed")
		return
	}
	log.Debug().Str("remote", r.RemoteAddr).Msg("[websocket] connection opened")
	h.hub.ServeConn(conn)
	log.Debug().Str("remote", r.RemoteAddr).Msg("[websocket] connection closed")
}

// handleEvents 以SSE推送广播帧，只读
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream := relay.NewSSEStream(64)
	member, err := h.hub.Join(stream, relay.TransportSSE)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer member.Leave()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEComment(w, flusher, "connected"); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stream.Done():
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		case frame := <-stream.Frames():
			if err := utils.SendSSEEvent(w, flusher, frame.Event, frame); err != nil {
				log.Debug().Err(err).Msg("[sse] write failed")
				return
			}
		}
	}
}

// handlePublish 接收一帧并广播
func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	var frame realtime.Frame
	if err := json.Unmarshal(body, &frame); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid frame")
		return
	}

	switch err := h.hub.Publish(frame); {
	case err == nil:
		utils.RespondJSON(w, http.StatusAccepted, map[string]any{
			"event":       frame.Event,
			"subscribers": h.hub.Len(),
		})
	case errors.Is(err, relay.ErrUnknownEvent):
		utils.RespondError(w, http.StatusBadRequest, "unknown event")
	case errors.Is(err, relay.ErrHubClosed):
		utils.RespondError(w, http.StatusServiceUnavailable, "relay shutting down")
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
