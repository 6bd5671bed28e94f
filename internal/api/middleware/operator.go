package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const operatorIDKey = "operatorID"

// OperatorMiddleware 从 X-Operator-ID 读取运营标识并注入上下文；白名单校验由业务层完成。
func OperatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Operator-ID"))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator id required"})
			return
		}
		c.Set(operatorIDKey, id)
		c.Next()
	}
}

// OperatorID 返回上下文中的运营标识。
func OperatorID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(operatorIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok
}
