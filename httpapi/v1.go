package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/cloudx-io/auctionhouse/auctionapi"
)

func initV1Route(router *gin.Engine, svc Service, devnet bool) {
	apiV1 := router.Group("/api/v1")
	apiV1.GET("/ping", queryHandler(svc, auctionapi.TypePing))
	apiV1.GET("/treasury", queryHandler(svc, auctionapi.TypeGetTreasury))
	apiV1.GET("/receipts/public-key", publicKeyHandler(svc))

	auctions := apiV1.Group("/auctions")
	auctions.POST("", bodyHandler(svc, auctionapi.TypeCreateAuction))                  // list an asset
	auctions.GET("/:asset_id", queryHandler(svc, auctionapi.TypeGetAuction))           // current record and history
	auctions.POST("/:asset_id/bids", bodyHandler(svc, auctionapi.TypeBid))             // place a bid
	auctions.POST("/:asset_id/finish", bodyHandler(svc, auctionapi.TypeFinishAuction)) // settle an expired auction
	auctions.POST("/:asset_id/cancel", bodyHandler(svc, auctionapi.TypeCancelAuction)) // close without a sale

	if !devnet {
		return
	}
	tokens := apiV1.Group("/devnet/tokens")
	tokens.POST("/mint", bodyHandler(svc, auctionapi.TypeMintTokens))
	tokens.POST("/approve", bodyHandler(svc, auctionapi.TypeApprove))
	tokens.GET("/balance/:account", queryHandler(svc, auctionapi.TypeBalanceOf))

	assets := apiV1.Group("/devnet/assets")
	assets.POST("", bodyHandler(svc, auctionapi.TypeMintAsset))
	assets.POST("/operators", bodyHandler(svc, auctionapi.TypeSetOperator))
	assets.GET("/:asset_id/owner", queryHandler(svc, auctionapi.TypeOwnerOf))
}
