package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderCorrelationID はリクエストをサービス横断で追跡するためのHTTPヘッダーキー。
const HeaderCorrelationID = "X-Correlation-ID"

// contextKeyCorrelationID はGinコンテキストに相関IDを格納するためのキー。
const contextKeyCorrelationID = "correlation_id"

// Correlation はリクエストごとに相関IDを割り当てるGinミドルウェアを返す。
// クライアントがX-Correlation-IDヘッダーを送っていればそれを引き継ぎ、
// 無ければ新規発行する。IDはレスポンスヘッダーにも必ず含める。
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(contextKeyCorrelationID, correlationID)
		c.Header(HeaderCorrelationID, correlationID)
		c.Next()
	}
}

// GetCorrelationID はGinコンテキストから相関IDを取得する。
// Correlationミドルウェアが事前に適用されている必要がある。
func GetCorrelationID(c *gin.Context) string {
	v, _ := c.Get(contextKeyCorrelationID)
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}
