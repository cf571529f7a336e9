// Package identity describes who owns a cart: a signed-in user or an
// anonymous browser session.
package identity

import "fmt"

type Kind uint8

const (
	KindNone Kind = iota
	KindUser
	KindSession
)

// CartIdentity is either user owned or session owned. The zero value owns nothing.
type CartIdentity struct {
	kind   Kind
	userID uint
	token  string
}

func ForUser(userID uint) CartIdentity {
	return CartIdentity{kind: KindUser, userID: userID}
}

func ForSession(token string) CartIdentity {
	if token == "" {
		return CartIdentity{}
	}
	return CartIdentity{kind: KindSession, token: token}
}

func (i CartIdentity) Kind() Kind { return i.kind }

func (i CartIdentity) UserID() (uint, bool) {
	return i.userID, i.kind == KindUser
}

func (i CartIdentity) SessionToken() (string, bool) {
	return i.token, i.kind == KindSession
}

// IsGuest reports whether the cart belongs to an anonymous session.
func (i CartIdentity) IsGuest() bool { return i.kind == KindSession }

func (i CartIdentity) Valid() bool { return i.kind != KindNone }

// String is safe to log; session tokens are shortened.
func (i CartIdentity) String() string {
	switch i.kind {
	case KindUser:
		return fmt.Sprintf("user:%d", i.userID)
	case KindSession:
		t := i.token
		if len(t) > 8 {
			t = t[:8]
		}
		return "session:" + t
	default:
		return "none"
	}
}
