package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/core"
)

// RecoverMiddleware turns a handler panic into a 500 response and logs the
// request and stack.
func RecoverMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if cause := recover(); cause != nil {
				log.Error("[Recovery] panic recovered",
					zap.Any("cause", cause),
					zap.String("request", dumpRequest(c.Request)),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, auctionapi.Response{
					Type:    auctionapi.TypeError,
					Code:    core.CodeInternal,
					Message: "unexpected error",
				})
			}
		}()

		c.Next()
	}
}

// dumpRequest renders the request line and headers. The body has already
// been consumed by the handler.
func dumpRequest(req *http.Request) string {
	b, err := httputil.DumpRequest(req, false)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// RLog logs every request with its body, response body and latency.
func RLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(requestBody))
		}
		writer := &bodyLogWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		start := time.Now()
		c.Next()

		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				log.Error(e)
			}
			return
		}
		log.Info("Request complete",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", time.Since(start)),
			zap.ByteString("request", requestBody),
			zap.ByteString("response", writer.body.Bytes()))
	}
}
