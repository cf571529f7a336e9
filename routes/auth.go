package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/auth"
)

// SetupAuthRoutes registers register, login and logout.
func SetupAuthRoutes(site *gin.RouterGroup, deps Dependencies) {
	opts := auth.Options{JWTSecret: deps.JWTSecret, SecureCookie: deps.CookieSecure}

	site.GET("/register/", auth.FormPage())
	site.POST("/register/", auth.Register(deps.DB))

	site.GET("/login/", auth.FormPage())
	site.POST("/login/", auth.Login(deps.DB, opts))

	site.GET("/logout/", auth.Logout(opts))
	site.POST("/logout/", auth.Logout(opts))
}
