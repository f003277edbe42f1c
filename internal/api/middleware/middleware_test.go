package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestClientLimiter_ExpiredClientsAreRemoved(t *testing.T) {
	l := newClientLimiter(1, 1, 50*time.Millisecond, 10*time.Millisecond)
	h := l.Handler(okHandler)

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(addr))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 3, l.limiters.ItemCount())

	assert.Eventually(t, func() bool {
		return l.limiters.ItemCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestClientLimiter_KeyedByUser(t *testing.T) {
	l := newClientLimiter(0.001, 1, time.Minute, 0)
	h := l.Handler(okHandler)

	asUser := func(id, addr string) int {
		req := requestFrom(addr)
		req = req.WithContext(context.WithValue(req.Context(), interfaces.PrincipalKey, &interfaces.Principal{UserID: id}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, asUser("u1", "10.0.0.1:1"))
	// тот же пользователь с другого адреса делит лимит
	assert.Equal(t, http.StatusTooManyRequests, asUser("u1", "10.0.0.2:1"))
	assert.Equal(t, http.StatusOK, asUser("u2", "10.0.0.1:1"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	h := RateLimiter(0, 1)(okHandler)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1:1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
