package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	r := gin.New()
	r.POST("/send-otp", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/send-otp", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := hit("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, code)
		}
	}

	if code := hit("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", code)
	}

	// another ip has its own bucket
	if code := hit("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("fresh ip status = %d, want 200", code)
	}
}
