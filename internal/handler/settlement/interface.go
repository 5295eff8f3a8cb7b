package settlement

import "github.com/gin-gonic/gin"

type IHandler interface {
	Settle(c *gin.Context)
	RecordInitiate(c *gin.Context)
	RecordParticipate(c *gin.Context)
	RegisterDelegatedTxs(c *gin.Context)
	Redeem(c *gin.Context)
	Refund(c *gin.Context)
	Abort(c *gin.Context)
	View(c *gin.Context)
	History(c *gin.Context)
	Transactions(c *gin.Context)
	TransactionByHash(c *gin.Context)
}
