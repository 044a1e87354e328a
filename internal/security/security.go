package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Config holds security configuration
type Config struct {
	MaxInputLength int
	MaxBodyBytes   int64
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableHSTS     bool
	CSPReportURI   string
}

// DefaultConfig returns secure defaults
func DefaultConfig() Config {
	return Config{
		MaxInputLength: 200,
		MaxBodyBytes:   64 * 1024,
		AllowedOrigins: []string{"http://localhost:8080"},
		RequestTimeout: 10 * time.Second,
	}
}

// Middleware bundles the request hardening handlers
type Middleware struct {
	config Config
}

// NewMiddleware creates a new security middleware instance
func NewMiddleware(config Config) *Middleware {
	return &Middleware{config: config}
}

var suspiciousPatterns = []string{
	`<script`, `</script>`, `javascript:`,
	`union select`, `drop table`, `alter table`,
	`/*`, `*/`,
}

var (
	scriptPattern     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	eventAttrPattern  = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// ValidateText checks a free-text answer for length, encoding and obvious injection payloads
func ValidateText(input string, maxLength int) error {
	if utf8.RuneCountInString(input) > maxLength {
		return fmt.Errorf("input exceeds maximum length of %d characters", maxLength)
	}

	if strings.Contains(input, "\x00") {
		return fmt.Errorf("input contains invalid characters")
	}

	if !utf8.ValidString(input) {
		return fmt.Errorf("input contains invalid UTF-8 encoding")
	}

	inputLower := strings.ToLower(input)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(inputLower, pattern) {
			return fmt.Errorf("input contains suspicious patterns")
		}
	}
	if eventAttrPattern.MatchString(input) {
		return fmt.Errorf("input contains suspicious patterns")
	}

	return nil
}

// SanitizeText strips markup and collapses whitespace in a free-text answer
func SanitizeText(input string) string {
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = whitespacePattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// CleanText sanitizes then validates a free-text answer
func (m *Middleware) CleanText(input string) (string, error) {
	cleaned := SanitizeText(input)
	if err := ValidateText(cleaned, m.config.MaxInputLength); err != nil {
		return "", err
	}
	return cleaned, nil
}

// ValidateContentType rejects bodies that are neither JSON nor form-encoded
func (m *Middleware) ValidateContentType(c *gin.Context) {
	if c.Request.ContentLength == 0 || c.Request.Method == http.MethodGet {
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	allowedTypes := []string{
		"application/json",
		"application/x-www-form-urlencoded",
		"multipart/form-data",
	}

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(contentType, allowed) {
			c.Next()
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
		"error": "unsupported content type",
	})
}

// LimitBody caps the request body size
func (m *Middleware) LimitBody(c *gin.Context) {
	if m.config.MaxBodyBytes > 0 && c.Request.Body != nil {
		if c.Request.ContentLength > m.config.MaxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, m.config.MaxBodyBytes)
	}
	c.Next()
}

// RequestTimeout bounds the request context
func (m *Middleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), m.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(m.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORS allows the configured origins to call the JSON API
func (m *Middleware) CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     m.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Headers returns the security header middleware for this config
func (m *Middleware) Headers() gin.HandlerFunc {
	return SecurityHeadersMiddleware(m.config.EnableHSTS)
}

// CSP returns the nonce-issuing CSP middleware for this config
func (m *Middleware) CSP() gin.HandlerFunc {
	return CSPMiddleware(m.config.CSPReportURI)
}
