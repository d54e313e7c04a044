package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumikids/edge/pkg/apierr"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にログを出力し、internal_errorの共通エラーボディで500を返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierr.Response{
					ErrorKind: apierr.KindInternal,
					Message:   "内部サーバーエラーが発生しました",
				})
			}
		}()
		c.Next()
	}
}
