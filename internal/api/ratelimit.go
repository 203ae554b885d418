package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/sitefit/server/internal/auth"
)

const (
	rateLimitExceededJSON = `{"error":"Rate limit exceeded","message":"Too many requests. Please try again later.","retry_after":%d}`
)

// RateLimitMiddleware creates an IP-keyed rate limiting middleware.
func RateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: window,
		Limit:  int64(limit),
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checkLimit(instance, getClientIP(r), next, w, r)
		})
	}
}

// UserRateLimitMiddleware creates a rate limiting middleware keyed by the
// authenticated user, falling back to the client IP when the request is
// unauthenticated.
func UserRateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: window,
		Limit:  int64(limit),
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)
			if userID, ok := auth.GetUserID(r); ok {
				key = fmt.Sprintf("user:%d", userID)
			}
			checkLimit(instance, key, next, w, r)
		})
	}
}

// checkLimit applies one limiter decision and either forwards the request
// or writes the 429. A limiter store failure lets the request through so
// rate limiting can never take the service down with it.
func checkLimit(instance *limiter.Limiter, key string, next http.Handler, w http.ResponseWriter, r *http.Request) {
	context, err := instance.Get(r.Context(), key)
	if err != nil {
		log.Printf("Rate limiter error: %v", err)
		next.ServeHTTP(w, r)
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(context.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(context.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(context.Reset, 10))

	if context.Reached {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)

		retryAfter := int(time.Until(time.Unix(context.Reset, 0)).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}
		if _, err := fmt.Fprintf(w, rateLimitExceededJSON, retryAfter); err != nil {
			log.Printf("Error writing rate limit response: %v", err)
		}
		return
	}

	next.ServeHTTP(w, r)
}

// getClientIP extracts the client IP address from the request, handling
// proxy headers.
func getClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		return forwarded
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	// Strip the port: "127.0.0.1:12345" -> "127.0.0.1"
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}

	return ip
}
