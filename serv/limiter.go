package serv

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	cache "github.com/go-pkgz/expirable-cache"
	"github.com/go-http-utils/headers"
	"golang.org/x/time/rate"
)

const (
	limiterMaxKeys = 10000
	limiterTTL     = 24 * time.Hour
)

// initLimiter creates the cache of per client limiters. It is a no-op
// when rate limiting is off.
func (s *service) initLimiter() (err error) {
	if !s.conf.rateLimiterEnable() || s.limiters != nil {
		return nil
	}
	s.limiters, err = cache.NewCache(
		cache.MaxKeys(limiterMaxKeys),
		cache.LRU(),
		cache.TTL(limiterTTL))
	return
}

// getIPLimiter returns the limiter for ip, creating it on first use
func (s *service) getIPLimiter(ip string) *rate.Limiter {
	if v, ok := s.limiters.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(s.conf.RateLimiter.Rate), s.conf.RateLimiter.Bucket)
	s.limiters.Set(ip, l, limiterTTL)
	return l
}

// clientIP returns the address requests are limited by. The configured
// header wins over the connection address.
func (s *service) clientIP(r *http.Request) string {
	if h := s.conf.RateLimiter.IPHeader; h != "" {
		if v := r.Header.Get(h); v != "" {
			// X-Forwarded-For style lists start with the client
			ip, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(ip)
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimiter rejects requests over the configured per client rate
func rateLimiter(s1 *HttpService, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)
		if s.limiters == nil {
			h.ServeHTTP(w, r)
			return
		}

		l := s.getIPLimiter(s.clientIP(r))
		if !l.Allow() {
			retry := math.Ceil(1 / s.conf.RateLimiter.Rate)
			w.Header().Set(headers.RetryAfter, strconv.Itoa(int(retry)))
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		h.ServeHTTP(w, r)
	})
}
