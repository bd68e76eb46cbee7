package admin

import (
	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, handlershared.ContextKeyAdminID)
}
