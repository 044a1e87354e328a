package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/html",
			"text/plain",
			"text/css",
		},
	}
}

// CompressionMiddleware provides gzip compression for HTTP responses
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	cm := &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
	}
	cm.pool.New = func() interface{} {
		gz, err := gzip.NewWriterLevel(nil, config.CompressionLevel)
		if err != nil {
			gz = gzip.NewWriter(nil)
		}
		return gz
	}
	return cm
}

// Handler returns the gin middleware. Responses are buffered until MinSize
// bytes are written, then compressed when the client and content type allow it.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cm.clientAcceptsGzip(c.Request) || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		original := c.Writer
		gzw := &gzipResponseWriter{ResponseWriter: original, cm: cm, status: http.StatusOK}
		c.Writer = gzw
		defer func() {
			gzw.finish()
			c.Writer = original
		}()

		c.Next()
	}
}

func (cm *CompressionMiddleware) clientAcceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// countingWriter tracks the compressed size
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// gzipResponseWriter wraps the gin writer with gzip compression
type gzipResponseWriter struct {
	gin.ResponseWriter
	cm       *CompressionMiddleware
	buf      bytes.Buffer
	gz       *gzip.Writer
	out      *countingWriter
	status   int
	original int64
	decided  bool
}

func (gzw *gzipResponseWriter) WriteHeader(statusCode int) {
	if !gzw.decided {
		gzw.status = statusCode
	}
}

func (gzw *gzipResponseWriter) WriteHeaderNow() {
	if !gzw.decided {
		_ = gzw.decide()
	}
}

func (gzw *gzipResponseWriter) Status() int {
	if gzw.decided {
		return gzw.ResponseWriter.Status()
	}
	return gzw.status
}

func (gzw *gzipResponseWriter) Written() bool {
	return gzw.decided || gzw.buf.Len() > 0
}

func (gzw *gzipResponseWriter) WriteString(s string) (int, error) {
	return gzw.Write([]byte(s))
}

func (gzw *gzipResponseWriter) Write(data []byte) (int, error) {
	gzw.original += int64(len(data))
	if gzw.decided {
		if gzw.gz != nil {
			return gzw.gz.Write(data)
		}
		return gzw.ResponseWriter.Write(data)
	}

	gzw.buf.Write(data)
	if gzw.buf.Len() >= gzw.cm.config.MinSize {
		if err := gzw.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

// decide commits the headers and flushes the buffered prefix
func (gzw *gzipResponseWriter) decide() error {
	gzw.decided = true
	header := gzw.ResponseWriter.Header()

	compress := gzw.buf.Len() >= gzw.cm.config.MinSize &&
		gzw.status != http.StatusNoContent &&
		gzw.status != http.StatusNotModified &&
		header.Get("Content-Encoding") == "" &&
		gzw.cm.shouldCompress(header.Get("Content-Type"))

	if !compress {
		gzw.ResponseWriter.WriteHeader(gzw.status)
		if gzw.buf.Len() == 0 {
			gzw.ResponseWriter.WriteHeaderNow()
			return nil
		}
		_, err := gzw.ResponseWriter.Write(gzw.buf.Bytes())
		return err
	}

	header.Set("Content-Encoding", "gzip")
	header.Add("Vary", "Accept-Encoding")
	header.Del("Content-Length")
	gzw.ResponseWriter.WriteHeader(gzw.status)

	gzw.out = &countingWriter{w: gzw.ResponseWriter}
	gzw.gz = gzw.cm.pool.Get().(*gzip.Writer)
	gzw.gz.Reset(gzw.out)
	_, err := gzw.gz.Write(gzw.buf.Bytes())
	return err
}

func (gzw *gzipResponseWriter) Flush() {
	if !gzw.decided {
		_ = gzw.decide()
	}
	if gzw.gz != nil {
		_ = gzw.gz.Flush()
	}
	gzw.ResponseWriter.Flush()
}

func (gzw *gzipResponseWriter) finish() {
	if !gzw.decided {
		if gzw.buf.Len() == 0 && gzw.ResponseWriter.Written() {
			return
		}
		_ = gzw.decide()
	}

	if gzw.gz == nil {
		gzw.cm.stats.RecordRequest(gzw.original, gzw.original, false)
		return
	}
	_ = gzw.gz.Close()
	gzw.cm.pool.Put(gzw.gz)
	gzw.gz = nil
	gzw.cm.stats.RecordRequest(gzw.original, gzw.out.n, true)
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
