package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/logging"
	"github.com/MrEthical07/adminauth/metrics/export/prometheus"
	"github.com/MrEthical07/adminauth/middleware"
	clog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// Options tunes [NewRouter].
type Options struct {
	// CookieSecure marks the session cookie Secure. Enable behind TLS.
	CookieSecure bool
	// CookieDomain is the optional Domain attribute of the session cookie.
	CookieDomain string
	// TrustedProxies are passed to gin for client IP resolution. Nil trusts no proxy.
	TrustedProxies []string
	// Metrics serves GET /metrics. Defaults to the Prometheus exporter over the engine.
	Metrics http.Handler
	// DisableMetrics removes the /metrics route.
	DisableMetrics bool
	Logger         *clog.Logger
}

type server struct {
	engine *adminauth.Engine
	opts   Options
	logger *clog.Logger
}

// NewRouter returns a gin engine serving the admin API over engine.
func NewRouter(engine *adminauth.Engine, opts Options) (*gin.Engine, error) {
	if engine == nil {
		return nil, adminauth.ErrEngineNotReady
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	s := &server{engine: engine, opts: opts, logger: opts.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	r.GET("/healthz", s.handleHealth)
	if !opts.DisableMetrics {
		h := opts.Metrics
		if h == nil {
			h = prometheus.NewPrometheusExporter(engine).Handler()
		}
		r.GET("/metrics", gin.WrapH(h))
	}

	api := r.Group("/api/admin")
	api.POST("/login", s.handleLogin)
	api.POST("/logout", s.handleLogout)

	authed := api.Group("", wrap(middleware.Guard(engine)))
	authed.GET("/verify", s.handleVerify)
	authed.POST("/password", s.handleChangePassword)

	admins := authed.Group("/admins", s.requireSuperAdmin())
	admins.GET("", s.handleListAdmins)
	admins.POST("", s.handleCreateAdmin)
	admins.GET("/:username", s.handleGetAdmin)
	admins.DELETE("/:username", s.handleRemoveAdmin)
	admins.POST("/:username/unlock", s.handleUnlock)
	admins.PUT("/:username/role", s.handleSetRole)
	admins.PUT("/:username/password", s.handleResetPassword)

	return r, nil
}

// wrap runs a net/http middleware as a gin handler. The request context the middleware
// builds is carried into the rest of the chain.
func wrap(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func (s *server) requireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.IdentityFromContext(c.Request.Context())
		if ok && id.IsSuperAdmin() {
			c.Next()
			return
		}
		s.engine.RecordDenied(s.requestContext(c), c.Request.Method+" "+c.FullPath(), c.Param("username"))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func (s *server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
