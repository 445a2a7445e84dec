package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// compressWriter routes body writes through the negotiated encoder.
type compressWriter struct {
	gin.ResponseWriter
	body io.Writer
}

func (w *compressWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.body.Write([]byte(s))
}

// Compress returns a middleware that encodes response bodies with brotli or gzip,
// whichever the client prefers in Accept-Encoding.
func Compress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead || c.GetHeader("Accept-Encoding") == "" {
			c.Next()
			return
		}

		body := brotli.HTTPCompressor(c.Writer, c.Request)
		c.Writer.Header().Del("Content-Length")
		c.Writer = &compressWriter{ResponseWriter: c.Writer, body: body}
		defer body.Close()

		c.Next()
	}
}
