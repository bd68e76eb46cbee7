package admin

import "github.com/dujiao-next/commerce-ledger/internal/provider"

// Handler 后台管理接口处理器入口
// 说明：管理员身份来自 X-Admin-ID，权限由 casbin 中间件判定。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
