package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PlayerSync/internal/shared/transport"
	"PlayerSync/modules/kit/logx"
)

// 响应体只留开头一段用来取 code；session 视图可能带整份 payload。
const capturePrefix = 512

type headCaptureWriter struct {
	gin.ResponseWriter
	head bytes.Buffer
}

func (w *headCaptureWriter) keep(p []byte) {
	if room := capturePrefix - w.head.Len(); room > 0 {
		w.head.Write(p[:min(room, len(p))])
	}
}

func (w *headCaptureWriter) Write(p []byte) (int, error) {
	w.keep(p)
	return w.ResponseWriter.Write(p)
}

func (w *headCaptureWriter) WriteString(s string) (int, error) {
	w.keep([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

// AccessLog 每个请求写一条 access 日志，业务码取响应体里的 code。
// /healthz 和 /metrics 被探针高频抓取，不记。
func AccessLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/healthz" || strings.HasPrefix(path, "/metrics") {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = path
		}
		ctx := transport.NewContextWithParent(c.Request.Context(), c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)
		w := &headCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		if id := c.Param("id"); id != "" {
			transport.SetPlayerID(ctx, id)
		}
		code, ok := leadingCode(w.head.Bytes())
		switch {
		case ok:
		case c.Writer.Status() >= http.StatusBadRequest:
			code = transport.SystemError
		default:
			code = transport.OK
		}
		transport.SetBizCode(ctx, transport.BizCode(code))
		transport.WriteAccessLog(ctx, log)
	}
}

// leadingCode 流式读顶层对象的 "code" 字段，body 被截断也能取到排在前面的 code。
func leadingCode(body []byte) (int, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return 0, false
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return 0, false
		}
		if key == "code" {
			var code int
			if err := dec.Decode(&code); err != nil {
				return 0, false
			}
			return code, true
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return 0, false
		}
	}
	return 0, false
}
