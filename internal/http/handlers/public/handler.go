package public

import "github.com/dujiao-next/commerce-ledger/internal/provider"

// Handler 前台/公开接口处理器入口
// 说明：用户身份由 X-User-ID 经身份中间件写入上下文。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
