package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/core"
)

// bodyHandler decodes an optional JSON request body, fills in the request
// type and the asset id from the path, and answers through svc.
func bodyHandler(svc Service, typ string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auctionapi.Request
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, typ, "invalid request body: "+err.Error())
			return
		}
		serve(c, svc, typ, req)
	}
}

// queryHandler builds the request from the path and query string.
func queryHandler(svc Service, typ string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := auctionapi.Request{
			RequestID: c.Query("request_id"),
			Caller:    c.Query("caller"),
			Account:   c.Param("account"),
		}
		serve(c, svc, typ, req)
	}
}

func serve(c *gin.Context, svc Service, typ string, req auctionapi.Request) {
	req.Type = typ
	if raw := c.Param("asset_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, typ, "invalid asset id "+strconv.Quote(raw))
			return
		}
		req.AssetID = id
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("X-Request-ID")
	}
	resp := svc.Handle(c.Request.Context(), req)
	c.JSON(statusFor(resp), resp)
}

func publicKeyHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := svc.ReceiptPublicKey()
		if !ok {
			c.JSON(http.StatusNotFound, auctionapi.Response{
				Type:    auctionapi.TypeError,
				Code:    core.Code(core.ErrNotFound),
				Message: "receipts are not enabled",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"algorithm": "ES256", "public_key": key})
	}
}

func badRequest(c *gin.Context, typ, msg string) {
	c.JSON(http.StatusBadRequest, auctionapi.Response{
		Type:    auctionapi.TypeError,
		Code:    core.Code(core.ErrInvalidParameters),
		Message: msg,
	})
}

var statusByCode = map[string]int{
	"InvalidParameters": http.StatusBadRequest,
	"NotFound":          http.StatusNotFound,
	"NotCustodyHolder":  http.StatusForbidden,
	"NotAuthorized":     http.StatusForbidden,
	"DuplicateAuction":  http.StatusConflict,
	"AuctionNotOpen":    http.StatusConflict,
	"AuctionExpired":    http.StatusConflict,
	"AuctionNotExpired": http.StatusConflict,
	"AuctionHasBids":    http.StatusConflict,
	"BidTooLow":         http.StatusConflict,
	"InsufficientFunds": http.StatusUnprocessableEntity,
	"TransfersPaused":   http.StatusServiceUnavailable,
}

func statusFor(resp auctionapi.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	if status, ok := statusByCode[resp.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
