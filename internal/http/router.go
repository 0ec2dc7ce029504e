package http

import (
	"github.com/geocoder89/libraryhub/internal/config"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/http/handlers"
	"github.com/geocoder89/libraryhub/internal/http/middlewares"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AccountService covers both the self-service and the admin user routes.
type AccountService interface {
	handlers.Accounts
	handlers.UserAdmin
}

type TokenService interface {
	handlers.TokenIssuer
	middlewares.TokenVerifier
}

type Deps struct {
	Config      config.Config
	Catalog     handlers.Catalog
	Circulation handlers.Circulation
	Accounts    AccountService
	Tokens      TokenService

	// LoginLimits backs the rate limit on /auth; nil disables it.
	LoginLimits middlewares.LimitStore

	// Prom and Gatherer are optional; /metrics is mounted when Gatherer is set.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	ReadyChecks map[string]handlers.PingFunc
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if d.Config.OTelEnabled {
		r.Use(otelgin.Middleware("libraryhub-api"))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.RequestTimeout(d.Config.RequestTimeout))

	health := handlers.NewHealthHandler(d.ReadyChecks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens)
	requireAuth := authMW.RequireAuth()
	requireAdmin := authMW.RequireRole(user.RoleAdmin)

	limit := func(c *gin.Context) { c.Next() }
	if d.LoginLimits != nil {
		limit = middlewares.NewRateLimiter(d.LoginLimits).RateLimiterMiddleware(middlewares.KeyByIP)
	}

	authHandler := handlers.NewAuthHandler(d.Accounts, d.Tokens)
	usersHandler := handlers.NewUsersHandler(d.Accounts)
	booksHandler := handlers.NewBooksHandler(d.Catalog)
	borrowingsHandler := handlers.NewBorrowingsHandler(d.Circulation)

	authGroup := r.Group("/auth", limit)
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	r.GET("/me", requireAuth, authHandler.Me)

	r.GET("/books", booksHandler.ListBooks)
	r.GET("/books/:id", booksHandler.GetBook)
	r.POST("/books", requireAuth, requireAdmin, booksHandler.CreateBook)
	r.PUT("/books/:id", requireAuth, requireAdmin, booksHandler.UpdateBook)
	r.DELETE("/books/:id", requireAuth, requireAdmin, booksHandler.DeleteBook)
	r.POST("/books/:id/borrow", requireAuth, borrowingsHandler.Borrow)

	me := r.Group("/borrowings", requireAuth)
	me.GET("", borrowingsHandler.ListMine)
	me.GET("/:id", borrowingsHandler.Get)
	me.POST("/:id/return", borrowingsHandler.Return)

	admin := r.Group("/admin", requireAuth, requireAdmin)
	admin.GET("/borrowings", borrowingsHandler.ListAll)
	admin.GET("/users", usersHandler.List)
	admin.POST("/users", usersHandler.Create)

	return r
}
