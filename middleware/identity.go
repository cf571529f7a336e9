package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/junaidrashid-git/tavern-api/identity"
)

const (
	cartTokenKey = "cart_token"
	identityKey  = "cart_identity"
)

// ResolveCartIdentity decides who owns the cart for this request: the signed-in
// user, otherwise the session's cart token, minting one on first visit.
// Must run after Sessions and Authenticate.
func ResolveCartIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, ok := CurrentUserID(c); ok {
			c.Set(identityKey, identity.ForUser(uid))
			c.Next()
			return
		}

		token, ok := CartToken(c)
		if !ok {
			token = uuid.NewString()
			if s := Session(c); s != nil {
				s.Values[cartTokenKey] = token
			}
		}
		c.Set(identityKey, identity.ForSession(token))
		c.Next()
	}
}

// CartIdentity returns the identity chosen by ResolveCartIdentity.
func CartIdentity(c *gin.Context) identity.CartIdentity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(identity.CartIdentity); ok {
			return id
		}
	}
	return identity.CartIdentity{}
}

// CartToken returns the guest cart token stored in the session.
func CartToken(c *gin.Context) (string, bool) {
	s := Session(c)
	if s == nil {
		return "", false
	}
	token, ok := s.Values[cartTokenKey].(string)
	return token, ok && token != ""
}

// ForgetCartToken drops the guest cart token so the next visit starts a new cart.
func ForgetCartToken(c *gin.Context) {
	if s := Session(c); s != nil {
		delete(s.Values, cartTokenKey)
	}
}
