package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"potledger/internal/config"
	"potledger/internal/models"
)

const (
	callerKey    = "caller"
	requestIDKey = "requestID"
)

// Authenticator resolves the verified identity behind a request. It must
// fail closed: an error means the request has no identity at all.
type Authenticator interface {
	Authenticate(r *http.Request) (models.PrincipalID, error)
}

type tokenEntry struct {
	token []byte
	name  models.PrincipalID
}

// TokenAuthenticator accepts "Authorization: Bearer <token>" headers for a
// fixed set of configured tokens.
type TokenAuthenticator struct {
	entries []tokenEntry
}

// NewTokenAuthenticator builds an authenticator from configured principals.
func NewTokenAuthenticator(principals []config.Principal) *TokenAuthenticator {
	a := &TokenAuthenticator{}
	for _, p := range principals {
		a.entries = append(a.entries, tokenEntry{token: []byte(p.Token), name: models.PrincipalID(p.Name)})
	}
	return a
}

// Authenticate implements Authenticator.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (models.PrincipalID, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", errors.Wrap(models.ErrUnauthorized, "missing bearer token")
	}
	// Compare against every entry so timing does not reveal a match position.
	var found models.PrincipalID
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(e.token, []byte(token)) == 1 {
			found = e.name
		}
	}
	if found == "" {
		return "", errors.Wrap(models.ErrUnauthorized, "unknown token")
	}
	return found, nil
}

// RequestID tags every request with an id, reusing X-Request-ID when the
// client sent one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// CallerMiddleware authenticates the request and stores the caller's
// identity for the handlers. Unauthenticated requests stop here.
func (h *HTTPHandler) CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := h.auth.Authenticate(c.Request)
		if err != nil {
			logger.Warningf("request %s: authentication failed: %v", c.GetString(requestIDKey), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "unauthenticated",
				"requestId": c.GetString(requestIDKey),
			})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerOf(c *gin.Context) models.PrincipalID {
	caller, _ := c.Get(callerKey)
	id, _ := caller.(models.PrincipalID)
	return id
}
