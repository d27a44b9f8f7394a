package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func originRouter(allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OriginFilter(allowed))
	r.GET("/api/health", Health)
	return r
}

func TestOriginFilter(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantCORS   bool
	}{
		{"no origin passes", []string{"http://a.test"}, http.MethodGet, "", http.StatusOK, false},
		{"allowed origin", []string{"http://a.test"}, http.MethodGet, "http://a.test", http.StatusOK, true},
		{"foreign origin", []string{"http://a.test"}, http.MethodGet, "http://evil.test", http.StatusForbidden, false},
		{"wildcard", []string{"*"}, http.MethodGet, "http://any.test", http.StatusOK, true},
		{"preflight", []string{"http://a.test"}, http.MethodOptions, "http://a.test", http.StatusNoContent, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/api/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			originRouter(tt.allowed...).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}
