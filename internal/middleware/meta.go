package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaStartedKey  = "meta_started_at"
	metaCacheHitKey = "meta_cache_hit"
)

// WithResponseMeta stamps the request start so handlers can report processing
// time in the response envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartedKey, time.Now())
		c.Next()
	}
}

// SetCacheHit records whether the payload came from the directory cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if c != nil {
		c.Set(metaCacheHitKey, hit)
	}
}

// ExtractMeta builds the envelope meta block. processing_time_ms is measured up to
// the call, so handlers invoke it right before writing. Returns nil when there is
// nothing to report.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := map[string]interface{}{}
	if started, ok := c.Get(metaStartedKey); ok {
		if ts, ok := started.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(ts).Milliseconds()
		}
	}
	if hit, ok := c.Get(metaCacheHitKey); ok {
		meta["cache_hit"] = hit
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
