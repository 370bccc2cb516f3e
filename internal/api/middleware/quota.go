package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/qs3c/quiz_go_server/internal/pkg/response"
	"github.com/qs3c/quiz_go_server/internal/service"
)

// QuotaKey 中间件写入的配额快照
const QuotaKey = "quota"

type quotaProbe struct {
	DocumentID *int64 `json:"document_id"`
}

// QuotaCheck 在出题前拦截已用完配额的请求。
// 只读取 document_id 判断分区，请求体缓存在上下文里，处理器需用 ShouldBindBodyWith 再次绑定。
// 服务层创建测验时会重新检查
func QuotaCheck(quotaService *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		var probe quotaProbe
		if err := c.ShouldBindBodyWith(&probe, binding.JSON); err != nil {
			response.ParamError(c, "请求格式错误")
			c.Abort()
			return
		}

		status, err := quotaService.CheckQuota(c.Request.Context(), userID, probe.DocumentID != nil, time.Now())
		if err != nil {
			response.ServerError(c, "配额检查失败")
			c.Abort()
			return
		}

		if !status.Allowed {
			response.ErrorWithData(c, response.CodeQuotaExceeded, service.ErrQuotaExceeded.Error(), status)
			c.Abort()
			return
		}

		c.Set(QuotaKey, status)
		c.Next()
	}
}
