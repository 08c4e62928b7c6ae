package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkpad/blogapi/internal/auth"
	"github.com/inkpad/blogapi/internal/cache"
	"github.com/inkpad/blogapi/internal/config"
	"github.com/inkpad/blogapi/internal/http/handlers"
	"github.com/inkpad/blogapi/internal/http/middlewares"
	"github.com/inkpad/blogapi/internal/observability"
	"github.com/inkpad/blogapi/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config, prom *observability.Prom, listCache cache.Store) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("blogapi"))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	// health + metrics
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	postsRepo := postgres.NewPostsRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL())
	authMw := middlewares.NewAuthMiddleware(jwtManager)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager)
	postsHandler := handlers.NewPostsHandlerWithCache(postsRepo, listCache, prom)

	// credential endpoints get a tight per-IP window, writes a looser
	// per-user one
	credRL := middlewares.NewRateLimiter(10, time.Minute)
	writeRL := middlewares.NewRateLimiter(60, time.Minute)

	r.POST("/register", credRL.Middleware(middlewares.KeyByIP), authHandler.Register)
	r.POST("/login", credRL.Middleware(middlewares.KeyByIP), authHandler.Login)

	r.GET("/posts", postsHandler.ListPosts)

	protected := r.Group("/posts")
	protected.Use(authMw.RequireAuth())
	protected.Use(writeRL.Middleware(middlewares.KeyByUserOrIP))

	protected.POST("", postsHandler.CreatePost)
	protected.PUT("/:id", postsHandler.UpdatePost)
	protected.DELETE("/:id", postsHandler.DeletePost)

	return r
}
