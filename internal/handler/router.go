package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	relayHandler "github.com/zhouzirui/chat-widget/internal/handler/relay"
	middlewarePkg "github.com/zhouzirui/chat-widget/internal/middleware"
	"github.com/zhouzirui/chat-widget/internal/relay"
	"github.com/zhouzirui/chat-widget/pkg/utils"
)

// NewRouter 组装中继路由。staticDir 为空时不提供嵌入页与静态资源。
func NewRouter(hub *relay.Hub, metrics *relay.Metrics, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"subscribers": hub.Len(),
		})
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	// 长连接路由不挂访问日志
	relayHandler.New(hub).RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Get("/embed", embedHandler(staticDir))
		if staticDir != "" {
			r.Handle("/*", http.FileServer(http.Dir(staticDir)))
		}
	})

	return r
}

// embedHandler 返回静态目录中的 index.html
func embedHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if staticDir == "" {
			utils.RespondError(w, http.StatusNotFound, "widget bundle not configured")
			return
		}
		index := filepath.Join(staticDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			utils.RespondError(w, http.StatusNotFound, "index.html not found")
			return
		}
		http.ServeFile(w, r, index)
	}
}
