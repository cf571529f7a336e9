package middleware

import (
	"encoding/gob"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/junaidrashid-git/tavern-api/logging"
	"go.uber.org/zap"
)

const (
	SessionName = "tavern_session"
	sessionKey  = "session"
)

type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashInfo    FlashLevel = "info"
	FlashWarning FlashLevel = "warning"
	FlashError   FlashLevel = "error"
)

// FlashMessage is a one-shot notice shown on the next rendered page.
type FlashMessage struct {
	Type    FlashLevel `json:"type"`
	Message string     `json:"message"`
}

func init() {
	gob.Register(FlashMessage{})
}

// NewCookieStore returns the session store used by the storefront.
func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Sessions loads the visitor's session once per request.
func Sessions(store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, SessionName)
		if err != nil {
			// A tampered or stale cookie still yields a fresh session.
			logging.FromGin(c).Debug("session_decode_failed", zap.Error(err))
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

// Session returns the request session, or nil when the middleware is absent.
func Session(c *gin.Context) *sessions.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*sessions.Session); ok {
			return s
		}
	}
	return nil
}

func AddFlash(c *gin.Context, level FlashLevel, message string) {
	if s := Session(c); s != nil {
		s.AddFlash(FlashMessage{Type: level, Message: message})
	}
}

// Flashes drains pending flash messages.
func Flashes(c *gin.Context) []FlashMessage {
	s := Session(c)
	if s == nil {
		return nil
	}
	var messages []FlashMessage
	for _, f := range s.Flashes() {
		if fm, ok := f.(FlashMessage); ok {
			messages = append(messages, fm)
		}
	}
	return messages
}

// SaveSession writes the session cookie. It must run before the body is written.
func SaveSession(c *gin.Context) {
	s := Session(c)
	if s == nil {
		return
	}
	if err := s.Save(c.Request, c.Writer); err != nil {
		logging.FromGin(c).Error("session_save_failed", zap.Error(err))
	}
}

// Redirect saves the session and answers 303 See Other.
func Redirect(c *gin.Context, location string) {
	SaveSession(c)
	c.Redirect(http.StatusSeeOther, location)
}

// Respond renders a page payload with the pending flash messages attached.
func Respond(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["messages"] = Flashes(c)
	SaveSession(c)
	c.JSON(status, body)
}
