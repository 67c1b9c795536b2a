package controlplane

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

type RouteConfig struct {
	Auth TokenAuthConfig
	// RequestsPerSecond caps requests per client IP. Zero means 10.
	RequestsPerSecond int64
}

func SetupRoutes(backend Backend, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rps := routeConfig.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	rateLimiter := limiter.New(memory.NewStore(), limiter.Rate{
		Period: 1 * time.Second,
		Limit:  rps,
	})

	h := NewHandler(backend)

	r.Use(gin.Recovery())
	r.Use(Logger())
	r.Use(SecureHeaders())
	r.Use(CORS())
	r.Use(Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", h.Index)

	v1 := r.Group("/v1")
	v1.Use(TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", h.Status)
		v1.GET("/files", h.Files)
		v1.POST("/sync", h.Sync)
		v1.GET("/journal", h.Journal)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
