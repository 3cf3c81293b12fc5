package utils

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorBody 是所有错误响应的 JSON 结构
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// RespondJSON 先完整编码再写出，编码失败时返回 500 而不是半截响应。
// 不转义 HTML，消息文本原样返回。
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("[http] failed to encode response")
		status = http.StatusInternalServerError
		buf.Reset()
		_ = enc.Encode(ErrorBody{Error: "response encoding failed", Status: status})
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug().Err(err).Msg("[http] client went away before response was written")
	}
}

// RespondError 发送错误响应，5xx 额外记录日志
func RespondError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		log.Warn().Int("status", status).Str("error", message).Msg("[http] server error response")
	}
	RespondJSON(w, status, ErrorBody{Error: message, Status: status})
}
