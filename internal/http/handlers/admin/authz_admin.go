package admin

import (
	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetMyPermissions 当前管理员的角色与展开后的权限
func (h *Handler) GetMyPermissions(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		handlershared.RespondErrorWithMsg(c, response.CodeInternal, "load admin roles failed", err)
		return
	}
	policies, err := h.AuthzService.AdminPermissions(adminID)
	if err != nil {
		handlershared.RespondErrorWithMsg(c, response.CodeInternal, "load admin permissions failed", err)
		return
	}
	response.Success(c, gin.H{
		"admin_id":    adminID,
		"roles":       roles,
		"permissions": policies,
	})
}
