package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	cartControllers "github.com/junaidrashid-git/tavern-api/controllers/cart"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Options struct {
	JWTSecret    []byte
	SecureCookie bool
	TokenTTL     time.Duration
}

func (o Options) ttl() time.Duration {
	if o.TokenTTL <= 0 {
		return middleware.TokenTTL
	}
	return o.TokenTTL
}

type RegisterForm struct {
	Username        string `form:"username" binding:"required,max=150"`
	Email           string `form:"email" binding:"required,email,max=254"`
	Password        string `form:"password" binding:"required,min=8,max=72"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

type LoginForm struct {
	UsernameOrEmail string `form:"username_or_email" binding:"required"`
	Password        string `form:"password" binding:"required"`
}

// RegisterUser creates an account with a bcrypt password hash.
func RegisterUser(ctx context.Context, db *gorm.DB, form RegisterForm) (*models.User, error) {
	db = db.WithContext(ctx)
	username := strings.TrimSpace(form.Username)
	email := strings.ToLower(strings.TrimSpace(form.Email))

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	if err := db.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Username: username, Email: email, PasswordHash: string(hash)}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyCredentials looks the user up by email first, then by username.
func VerifyCredentials(ctx context.Context, db *gorm.DB, usernameOrEmail, password string) (*models.User, error) {
	db = db.WithContext(ctx)
	ident := strings.TrimSpace(usernameOrEmail)

	var user models.User
	err := db.Where("LOWER(email) = ?", strings.ToLower(ident)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("username = ?", ident).First(&user).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// -------- Handlers --------

// GET /register/, GET /login/
func FormPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.Respond(c, http.StatusOK, gin.H{"csrf_header": middleware.CSRFHeader})
	}
}

// POST /register/
func Register(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form RegisterForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid registration details", "fields": middleware.BindingErrors(err)})
			return
		}

		user, err := RegisterUser(c.Request.Context(), db, form)
		switch {
		case errors.Is(err, ErrUsernameTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid registration details", "fields": gin.H{"username": "Username is already taken."}})
			return
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid registration details", "fields": gin.H{"email": "Email is already in use."}})
			return
		case err != nil:
			logging.FromGin(c).Error("register_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
			return
		}

		logging.FromGin(c).Info("user_registered", zap.Uint("user_id", user.ID))
		middleware.AddFlash(c, middleware.FlashSuccess, "Account created successfully! You can now log in.")
		middleware.Redirect(c, "/login/")
	}
}

// POST /login/
func Login(db *gorm.DB, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form LoginForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid login details", "fields": middleware.BindingErrors(err)})
			return
		}

		// 1️⃣ Check credentials
		user, err := VerifyCredentials(c.Request.Context(), db, form.UsernameOrEmail, form.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			middleware.AddFlash(c, middleware.FlashError, "Invalid credentials.")
			middleware.Respond(c, http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("login_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		// 2️⃣ Issue token
		token, err := middleware.IssueToken(opts.JWTSecret, user.ID, user.Username, opts.ttl())
		if err != nil {
			logging.FromGin(c).Error("token_issue_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Token generation failed"})
			return
		}
		middleware.SetAuthCookie(c, token, opts.SecureCookie)

		// 3️⃣ Merge guest cart into user cart
		if guestToken, ok := middleware.CartToken(c); ok {
			if err := cartControllers.MergeGuestCart(c.Request.Context(), db, guestToken, user.ID); err != nil {
				// The login still succeeds; the guest cart stays where it was.
				logging.FromGin(c).Warn("guest_cart_merge_failed", zap.Uint("user_id", user.ID), zap.Error(err))
			} else {
				middleware.ForgetCartToken(c)
			}
		}

		logging.FromGin(c).Info("user_logged_in", zap.Uint("user_id", user.ID))
		middleware.AddFlash(c, middleware.FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.Username))
		middleware.Redirect(c, "/")
	}
}

// GET|POST /logout/
func Logout(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.ClearAuthCookie(c, opts.SecureCookie)
		middleware.AddFlash(c, middleware.FlashSuccess, "You have been logged out.")
		middleware.Redirect(c, "/login/")
	}
}
