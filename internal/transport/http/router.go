package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/lotto999/lotto-service/http"
	"github.com/lotto999/lotto-service/internal/config"
)

// NewRouter builds the gin engine with logging and rate limiting.
func NewRouter(s Services, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.LoggingMiddleware(log))
	r.Use(mw.RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, s)
	return r
}
