// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger mounted by the
// router. It scrubs credentials and obvious PII from request metadata before
// emitting logs:
//
//   - request and response bodies are never logged
//   - credential query parameters (api_key, apikey, token_user, user_token,
//     access_token) have their values replaced
//   - 64-hex session and chat tokens, e-mails, phone numbers and UUIDs are
//     replaced wherever they appear in the query or header values
//   - Authorization, Cookie, Set-Cookie and X-API-Key are fully masked, plus
//     any header listed in RedactOptions.MaskHeaders
//
// Like Logger, it stores a request-scoped logger for LoggerFrom.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders lists extra header names (case-insensitive) whose values are
// replaced with "[REDACTED]".
type RedactOptions struct {
	MaskHeaders []string
}

var (
	credParamRE = regexp.MustCompile(`(?i)\b(api_?key|token_user|user_token|access_token|destinatario_token|usuario_bloquear_token)=[^&]*`)
	hexTokenRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{64}\b`)
	uuidRE      = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE     = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so hex segments of UUIDs and tokens never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact scrubs credentials and PII from s. Tokens and UUIDs go first: the
// phone pattern is the loosest and would otherwise eat digit runs.
func Redact(s string) string {
	if s == "" {
		return s
	}
	out := credParamRE.ReplaceAllString(s, "$1=[REDACTED]")
	out = hexTokenRE.ReplaceAllString(out, "[REDACTED:token]")
	out = uuidRE.ReplaceAllString(out, "[REDACTED:id]")
	out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
	out = phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
	return out
}

// RedactingLogger returns a Gin middleware that logs each request with
// sensitive values scrubbed: info for 2xx/3xx, warn for 4xx, error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-api-key":     {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = Redact(c.Request.URL.Path)
		}
		safeQuery := Redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = Redact(strings.Join(vv, ", "))
		}

		reqID := RequestIDFrom(c)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		l := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}

		uid, _ := c.Get(UserIDKey)
		ev.
			Str("user_id", asString(uid)).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
