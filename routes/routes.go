package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/junaidrashid-git/tavern-api/cache"
	orderControllers "github.com/junaidrashid-git/tavern-api/controllers/order"
	paymentControllers "github.com/junaidrashid-git/tavern-api/controllers/payment"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/notify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies carries everything the handlers need. Zero-value Listings and
// Limiter fall back to their no-op implementations.
type Dependencies struct {
	DB       *gorm.DB
	Listings cache.Cache
	Limiter  cache.Limiter
	Gateway  paymentControllers.Gateway
	Notifier *notify.Notifier
	Hub      *orderControllers.StatusHub

	JWTSecret    []byte
	SessionStore sessions.Store
	CSRFKey      []byte
	CookieSecure bool

	AdminAPIKey      string
	CallbackBaseURL  string
	WebhookChallenge string
}

func (d *Dependencies) defaults() {
	if d.Listings == nil {
		d.Listings = cache.Noop{}
	}
	if d.Limiter == nil {
		d.Limiter = cache.NoopLimiter{}
	}
	if d.Hub == nil {
		d.Hub = orderControllers.NewStatusHub()
	}
	if d.Notifier == nil {
		d.Notifier = notify.New(nil, nil)
	}
}

// SetupRoutes is the single entry-point that wires up the storefront, payment
// callback, and admin route groups.
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	deps.defaults()
	r.HandleMethodNotAllowed = true

	// 1️⃣ Machine endpoints (no session, no CSRF)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Any(paymentControllers.WebhookPath,
		paymentControllers.Webhook(deps.DB, deps.WebhookChallenge, deps.Hub, deps.Notifier))

	// 2️⃣ Browser storefront (session + JWT + CSRF + cart identity)
	site := r.Group("/")
	site.Use(
		middleware.Sessions(deps.SessionStore),
		middleware.Authenticate(deps.JWTSecret),
		middleware.CSRF(deps.CSRFKey, deps.CookieSecure),
		middleware.ResolveCartIdentity(),
	)
	SetupStorefrontRoutes(site, deps)
	SetupOrderRoutes(site, deps)
	SetupPaymentRoutes(site, deps)
	SetupAuthRoutes(site, deps)

	// 3️⃣ Admin routes (API-Key-protected)
	SetupAdminRoutes(r, deps)
}
