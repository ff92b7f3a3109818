package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"soil-monitor/internal/core/ratelimit"
	resp "soil-monitor/internal/transport/http/response"
)

func tooMany(c *gin.Context) {
	c.AbortWithStatusJSON(resp.Status(resp.KindTooManyRequests), resp.Error(resp.KindTooManyRequests, ""))
}

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if !lim.Allow() {
			tooMany(c)
			return
		}
		c.Next()
	}
}

// ipIdleTTL 超过该时长未出现的 IP 桶会被回收
const ipIdleTTL = 10 * time.Minute

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipBuckets 每 IP 一个令牌桶，访问时顺带清理空闲桶
type ipBuckets struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	m         map[string]*ipBucket
}

func newIPBuckets(rps rate.Limit, burst int, idle time.Duration) *ipBuckets {
	return &ipBuckets{
		rps:   rps,
		burst: burst,
		idle:  idle,
		now:   time.Now,
		m:     make(map[string]*ipBucket),
	}
}

func (b *ipBuckets) allow(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if now.Sub(b.lastSweep) >= b.idle {
		for k, e := range b.m {
			if now.Sub(e.seen) >= b.idle {
				delete(b.m, k)
			}
		}
		b.lastSweep = now
	}
	e, ok := b.m[ip]
	if !ok {
		e = &ipBucket{lim: rate.NewLimiter(b.rps, b.burst)}
		b.m[ip] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

func (b *ipBuckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}

// RateLimitPerIP 每 IP 一个令牌桶；IP 取自 c.ClientIP()，受 trusted proxies 约束
func RateLimitPerIP(rps rate.Limit, burst int) gin.HandlerFunc {
	return perIP(newIPBuckets(rps, burst, ipIdleTTL))
}

func perIP(b *ipBuckets) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !b.allow(c.ClientIP()) {
			tooMany(c)
			return
		}
		c.Next()
	}
}

// LoginThrottle 以客户端 IP 为 key 的分布式固定窗口限流；fw 为 nil 时不生效
func LoginThrottle(fw *ratelimit.FixedWindow) gin.HandlerFunc {
	return func(c *gin.Context) {
		if fw == nil {
			c.Next()
			return
		}
		if !fw.Allow(c.Request.Context(), "login:"+c.ClientIP()) {
			tooMany(c)
			return
		}
		c.Next()
	}
}
