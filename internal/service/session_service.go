package service

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

// SessionService is the session provider contract this subsystem consumes: it
// answers "who is the current authenticated user, if any". The dashboard that
// fronts this server shares the cookie secret and performs the actual login.

type SessionServiceConfig struct {
	Secret        string
	CookieName    string
	SessionExpiry int
	SecureCookie  bool
}

type SessionService struct {
	config SessionServiceConfig
	store  *sessions.CookieStore
}

func NewSessionService(config SessionServiceConfig) *SessionService {
	return &SessionService{
		config: config,
	}
}

func (session *SessionService) Init() error {
	store := sessions.NewCookieStore([]byte(session.config.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   session.config.SessionExpiry,
		Secure:   session.config.SecureCookie,
		HttpOnly: true,
	}
	session.store = store
	return nil
}

// GetUser returns the authenticated user id or an empty string.
func (session *SessionService) GetUser(c *gin.Context) string {
	cookie, err := session.store.Get(c.Request, session.config.CookieName)
	if err != nil {
		log.Debug().Err(err).Msg("Invalid session cookie")
		return ""
	}

	userID, ok := cookie.Values["user_id"].(string)
	if !ok {
		return ""
	}

	return userID
}

func (session *SessionService) SetUser(c *gin.Context, userID string) error {
	cookie, _ := session.store.Get(c.Request, session.config.CookieName)
	cookie.Values["user_id"] = userID
	return cookie.Save(c.Request, c.Writer)
}

func (session *SessionService) ClearUser(c *gin.Context) error {
	cookie, _ := session.store.Get(c.Request, session.config.CookieName)
	delete(cookie.Values, "user_id")
	cookie.Options.MaxAge = -1
	return cookie.Save(c.Request, c.Writer)
}
