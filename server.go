package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/middlewares"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/rpc"
	"github.com/medequip/equipment_backend/workflow"
	"github.com/sirupsen/logrus"
)

// App holds what the handlers need. Tests swap the collaborators for fakes.
type App struct {
	caller       rpc.Caller
	allow        *rpc.AllowList
	drafts       *workflow.DraftSessions
	sessions     middlewares.SessionResolver
	login        func(ctx context.Context, username, password string) (*models.LoginInfo, error)
	logout       func(ctx context.Context) (bool, error)
	proxyEnabled func() bool
}

func NewApp(cfg config.AppConfig) (*App, error) {
	client, err := rpc.NewClient(cfg, nil)
	if err != nil {
		return nil, err
	}
	drafts, err := workflow.NewRedisDraftSessions(cfg, workflow.NewMaintenanceBackend(client))
	if err != nil {
		return nil, err
	}
	return &App{
		caller:       client,
		allow:        client.AllowList(),
		drafts:       drafts,
		sessions:     models.GetSession,
		login:        models.Login,
		logout:       models.Logout,
		proxyEnabled: config.RpcProxyEnabled,
	}, nil
}

// Routes installs the handlers on r. Global middlewares are the caller's.
func (a *App) Routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.POST("/auth/login", a.loginHandler())
	r.POST("/auth/logout", middlewares.RequireSession(), a.logoutHandler())

	authed := r.Group("/", middlewares.RequireSession())
	authed.GET("/templates/equipment-import", a.templateHandler(equipmentImportFile, workflow.EquipmentImportTemplate))
	authed.GET("/templates/device-quota", a.templateHandler(deviceQuotaFile, workflow.DeviceQuotaTemplate))

	plan := authed.Group("/maintenance-plans/:planId/draft")
	plan.GET("", a.fetchDraftHandler())
	plan.PUT("", a.replaceDraftHandler())
	plan.POST("/tasks", a.addDraftTasksHandler())
	plan.PUT("/tasks/:taskId", a.updateDraftTaskHandler())
	plan.DELETE("/tasks", a.removeDraftTasksHandler())
	plan.POST("/cancel", a.cancelDraftHandler())
	plan.POST("/save", a.saveDraftHandler())

	authed.POST("/api/rpc/:function", a.rpcProxyHandler())

	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsConfig(cfg config.AppConfig) cors.Config {
	corsConfig := cors.DefaultConfig()
	// In production only the configured origins are allowed; none when unset.
	if cfg.IsProduction() {
		corsConfig.AllowOrigins = cfg.CorsAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true
	return corsConfig
}

func newRouter(cfg config.AppConfig, app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.CorrelationId())
	r.Use(func(c *gin.Context) {
		// Always answer the Cloud Run startup check.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Sessions and drafts live in redis; logins need the users table.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service is starting"})
			return
		}
		c.Next()
	})
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middlewares.SessionMiddleware(app.sessions))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		r.Use(middlewares.NewRateLimiter(config.GetRedisDB, limit, time.Duration(windowSec)*time.Second).Middleware())
	}

	r.Use(middlewares.ErrorLogger())
	app.Routes(r)
	return r
}

func main() {
	cfg := config.Load()
	logger := config.GetLogger()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	app, err := NewApp(cfg)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "startup"}).Fatal(err.Error())
	}

	// Start listening immediately; until DB and redis are ready the gate answers 503.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(cfg, app),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry(sigCtx)
	config.ConnectRedisWithRetry(sigCtx)

	if db := config.GetDB(); db != nil {
		sqlDB, _ := db.DB()
		defer func() {
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		}()
		// AutoMigrate can be run as a separate job instead.
		if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
			models.MigrateTable()
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}
	}

	logger.WithFields(logrus.Fields{
		"info":      "Connection Established",
		"rpc_proxy": cfg.RpcBaseURL,
	}).Info("listening on port ", cfg.Port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
