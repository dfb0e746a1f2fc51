// Package httpapi exposes the auction service over HTTP with gin.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/auctionapi"
)

// Service answers auction house requests. *service.AuctionService implements
// it.
type Service interface {
	Handle(ctx context.Context, req auctionapi.Request) auctionapi.Response
	ReceiptPublicKey() (string, bool)
}

// Config configures the HTTP gateway. An empty Listen disables it.
type Config struct {
	Listen      string   `toml:"listen" mapstructure:"listen" json:"listen"`
	CORSOrigins []string `toml:"cors_origins" mapstructure:"cors_origins" json:"cors_origins"`
	Pprof       bool     `toml:"pprof" mapstructure:"pprof" json:"pprof"`
	Devnet      bool     `toml:"devnet" mapstructure:"devnet" json:"devnet"`
}

// NewRouter builds the gin engine: recovery, request logging and CORS
// middleware, the /api/v1 routes and optionally the pprof handlers.
func NewRouter(svc Service, cfg Config, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RecoverMiddleware(log))
	router.Use(RLog(log))
	router.Use(Cors(cfg.CORSOrigins))
	if cfg.Pprof {
		pprof.Register(router)
	}
	initV1Route(router, svc, cfg.Devnet)
	return router
}

// Cors allows the configured origins, or every origin when none are set.
func Cors(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}
