package public

import (
	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, handlershared.ContextKeyUserID)
}
