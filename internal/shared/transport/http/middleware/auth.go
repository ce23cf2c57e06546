package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PlayerSync/internal/shared/security"
	"PlayerSync/internal/shared/transport"
)

const ctxKeyCaller = "caller"

// Auth 校验 `Authorization: Bearer <token>`。signer 为 nil 时不校验（本地开发）。
func Auth(signer *security.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if signer == nil {
			c.Next()
			return
		}
		raw := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "缺少 token")
			return
		}
		claims, err := signer.Parse(strings.TrimSpace(token))
		if err != nil {
			transport.SetErrorReason(c.Request.Context(), err.Error())
			abortUnauthorized(c, "token 无效")
			return
		}
		c.Set(ctxKeyCaller, claims.Caller)
		transport.SetCaller(c.Request.Context(), claims.Caller)
		c.Next()
	}
}

// CallerFrom 取 Auth 写入的调用方标识。
func CallerFrom(c *gin.Context) string {
	return c.GetString(ctxKeyCaller)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": transport.Unauthorized,
		"msg":  msg,
	})
}
