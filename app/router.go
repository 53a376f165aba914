// Package app builds the HTTP router and holds every endpoint
package app

import (
	"bitwise74/kidney-api/app/predict"
	"bitwise74/kidney-api/app/report"
	"bitwise74/kidney-api/app/root"
	"bitwise74/kidney-api/app/user"
	"bitwise74/kidney-api/internal"
	"bitwise74/kidney-api/pkg/middleware"
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Room for the multipart envelope around the file itself
const multipartOverhead = 1 << 20

// NewRouter registers every route on a new engine. Background goroutines
// started for the router end when ctx is done.
func NewRouter(ctx context.Context, d *internal.Deps) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(corsConfig()),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == http.MethodHead
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString(middleware.RequestIDKey); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString(middleware.UserEmailKey); v != "" {
					fields = append(fields, zap.String("user", v))
				}

				return fields
			},
		}),
		middleware.ErrorRenderer(),
	)

	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 8 << 20

	// Wrong methods on known paths fall through to NoRoute as well
	router.NoRoute(middleware.NoRoute)

	rateLimit := viper.GetInt("security.rate_limit")
	maxUploadSize := viper.GetInt64("upload.max_bytes")

	jwt := middleware.NewJWTMiddleware(d.Auth)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
	}, ctx.Done())

	welcomeCache := persist.NewMemoryStore(time.Minute)

	// GET /health			-> Used to check if the server is alive
	router.GET("/health", root.Health)

	// GET /welcome			-> Greets the client
	router.GET("/welcome", cache.CacheByRequestURI(welcomeCache, 30*time.Second,
		cache.WithDiscardHeaders([]string{middleware.RequestIDHeader}),
		cache.WithOnHitCache(root.LogRequest),
	), root.Welcome)

	m := router.Group("/api")
	{
		// GET /api/health		-> Same as /health
		m.GET("/health", root.Health)

		// POST /api/predict		-> Classifies an uploaded image
		m.POST("/predict", middleware.BodySizeLimiter(maxUploadSize+multipartOverhead, "File too large"),
			func(c *gin.Context) { predict.Predict(c, d) })
	}

	u := m.Group("", rateLimiter, middleware.BodySizeLimiter(1<<20, "Request body too large"))
	{
		// POST /api/register		-> Registers a new user and returns a session
		u.POST("/register", func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/login		-> Logs in a user and returns a session
		u.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })

		// POST /api/forgot-password	-> Sends a one-time code to the user
		u.POST("/forgot-password", func(c *gin.Context) { user.UserForgotPassword(c, d) })

		// POST /api/verify-otp		-> Checks a one-time code
		u.POST("/verify-otp", func(c *gin.Context) { user.UserVerifyOTP(c, d) })

		// POST /api/reset-password	-> Sets a new password
		u.POST("/reset-password", func(c *gin.Context) { user.UserResetPassword(c, d) })
	}

	r := m.Group("/reports", jwt)
	{
		// GET /api/reports		-> Returns the reports of the user
		r.GET("", func(c *gin.Context) { report.ReportList(c, d) })

		// POST /api/reports		-> Adds a report
		r.POST("", middleware.BodySizeLimiter(1<<20, "Request body too large"),
			func(c *gin.Context) { report.ReportAdd(c, d) })

		// DELETE /api/reports/:id	-> Deletes a report owned by the user
		r.DELETE("/:id", func(c *gin.Context) { report.ReportDelete(c, d) })

		// GET /api/reports/:id/export	-> Downloads a report as a zip archive
		r.GET("/:id/export", func(c *gin.Context) { report.ReportExport(c, d) })
	}

	return router
}

func corsConfig() cors.Config {
	origins := []string{}
	for _, o := range viper.GetStringSlice("host.cors") {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}

	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}

	return cfg
}
