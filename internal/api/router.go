package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jengzang/records-explorer-go/internal/config"
	"github.com/jengzang/records-explorer-go/internal/explorer"
	"github.com/jengzang/records-explorer-go/internal/handler"
	"github.com/jengzang/records-explorer-go/internal/middleware"
	"github.com/jengzang/records-explorer-go/internal/repository"
	"github.com/jengzang/records-explorer-go/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, db *sql.DB, store *explorer.Store, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Records Explorer API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	activityRepo := repository.NewActivityRepository(db)
	activityHandler := handler.NewActivityHandler(service.NewActivityService(activityRepo))
	explorerHandler := handler.NewExplorerHandler(service.NewExplorerService(store, activityRepo, logger))
	computeLimiter := middleware.NewRateLimiter(cfg.ComputeRatePerMinute, cfg.ComputeBurst)

	// API 路由组
	api := r.Group("/api/v1")
	{
		activities := api.Group("/activities")
		{
			activities.GET("", activityHandler.GetActivities)
			activities.POST("", activityHandler.CreateActivity)
			activities.GET("/:id", activityHandler.GetActivity)
			activities.DELETE("/:id", activityHandler.DeleteActivity)
		}

		ex := api.Group("/explorer")
		{
			ex.POST("/compute", middleware.RateLimit(computeLimiter), explorerHandler.Compute)
			ex.POST("/reset", middleware.RateLimit(computeLimiter), explorerHandler.Reset)
			ex.GET("/zooms", explorerHandler.GetZooms)

			zoom := ex.Group("/zooms/:zoom")
			{
				zoom.GET("/tiles", explorerHandler.GetTiles)
				zoom.GET("/tiles/:x/:y", explorerHandler.GetTile)
				zoom.GET("/clusters", explorerHandler.GetClusters)
				zoom.GET("/square", explorerHandler.GetSquare)
				zoom.GET("/history/clusters", explorerHandler.GetClusterHistory)
				zoom.GET("/history/squares", explorerHandler.GetSquareHistory)
				zoom.GET("/summary", explorerHandler.GetSummary)
				zoom.GET("/geojson", explorerHandler.GetGeoJSON)
			}
		}
	}

	return r
}
