// Package session owns authentication against the node's admin interface.
//
// The Manager is the only holder of the session cookie. Every outbound call asks
// it for a valid Session via EnsureValid and applies it to the request; a call the
// node rejects as unauthorized calls Invalidate and asks again.
package session

import (
	"net/http"
	"time"
)

// Session is the credential issued by the node at login.
// It is created and replaced only by Manager; callers use Apply.
type Session struct {
	cookies   []*http.Cookie
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Apply attaches the session credential to req
func (s *Session) Apply(req *http.Request) {
	for _, c := range s.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}

// ValidAt reports whether the session can still be used at now
func (s *Session) ValidAt(now time.Time) bool {
	return s != nil && len(s.cookies) > 0 && now.Before(s.ExpiresAt)
}

// newSession derives expiry from the cookies and the configured ttl, whichever is earlier
func newSession(cookies []*http.Cookie, issued time.Time, ttl time.Duration) *Session {
	expires := issued.Add(ttl)
	for _, c := range cookies {
		var cookieExpiry time.Time
		switch {
		case c.MaxAge > 0:
			cookieExpiry = issued.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			cookieExpiry = c.Expires
		}
		if !cookieExpiry.IsZero() && cookieExpiry.Before(expires) {
			expires = cookieExpiry
		}
	}
	return &Session{cookies: cookies, IssuedAt: issued, ExpiresAt: expires}
}
