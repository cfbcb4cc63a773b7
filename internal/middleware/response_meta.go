package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "response_meta"
	metaStartedAtKey = "response_meta_started"
	cacheHitKey      = "cache_hit"
	processingKey    = "processing_time_ms"
)

// WithResponseMeta enables the envelope meta block for the routes below it.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartedAtKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta stores key in the response meta. It is a no-op on routes without
// WithResponseMeta.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if meta := metaOf(c); meta != nil {
		meta[key] = value
	}
}

// SetCacheHit records whether the payload came from the analytics cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// ExtractMeta returns the meta to embed in the response, stamped with the
// time spent so far. Nil when the route has no meta.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaOf(c)
	if meta == nil {
		return nil
	}
	if started, ok := c.Get(metaStartedAtKey); ok {
		if at, ok := started.(time.Time); ok {
			meta[processingKey] = time.Since(at).Milliseconds()
		}
	}
	return meta
}

func metaOf(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(map[string]interface{})
	return meta
}
