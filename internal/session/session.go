// Package session resolves who is looking at the app. Tokens are issued by
// the external auth provider; this package only validates them.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	contextKey = "session"

	DefaultCookieName = "powkie_session"
)

var (
	ErrMissingToken   = errors.New("missing session token")
	ErrInvalidToken   = errors.New("invalid session token")
	ErrMissingSubject = errors.New("session token has no account")
)

// Session is either an authenticated identity or the guest (zero AccountID).
type Session struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
}

func Guest() Session {
	return Session{}
}

func (s Session) Authenticated() bool {
	return s.AccountID != uuid.Nil
}

func (s Session) Is(accountID uuid.UUID) bool {
	return s.Authenticated() && s.AccountID == accountID
}

// InDomain reports whether the session email belongs to domain. An empty
// domain admits everyone.
func (s Session) InDomain(domain string) bool {
	if domain == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(s.Email), "@"+strings.ToLower(domain))
}

type Config struct {
	Secret        []byte
	CookieName    string
	AllowedDomain string
}

type Claims struct {
	AccountID string `json:"account_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func Parse(secret []byte, tokenString string) (Session, error) {
	if tokenString == "" {
		return Guest(), ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Guest(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.AccountID
	}
	if subject == "" {
		return Guest(), ErrMissingSubject
	}

	accountID, err := uuid.Parse(subject)
	if err != nil {
		return Guest(), fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	return Session{AccountID: accountID, Email: claims.Email, Name: claims.Name}, nil
}

// Issue signs a token in the provider's format. Used by tests and local tooling.
func Issue(secret []byte, s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: s.Email,
		Name:  s.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.AccountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func tokenFromRequest(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

// Resolve attaches a Session to every request. Bad or missing tokens
// resolve to the guest session; nothing is rejected here.
func Resolve(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := Parse(cfg.Secret, tokenFromRequest(c, cfg.CookieName))
		if err != nil {
			s = Guest()
		}

		Set(c, s)
		c.Next()
	}
}

// Set attaches s to the request; FromContext reads it back.
func Set(c *gin.Context, s Session) {
	c.Set(contextKey, s)
}

// Require rejects guests and identities outside the configured community.
// It must run after Resolve.
func Require(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := FromContext(c)
		if !s.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "login_required",
				Message: "You must be logged in to do that.",
			})
			return
		}

		if !s.InDomain(cfg.AllowedDomain) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "outside_community",
				Message: fmt.Sprintf("Only @%s accounts can do that.", cfg.AllowedDomain),
			})
			return
		}

		c.Next()
	}
}

func FromContext(c *gin.Context) Session {
	if v, ok := c.Get(contextKey); ok {
		if s, ok := v.(Session); ok {
			return s
		}
	}
	return Guest()
}

func Current(c *gin.Context) {
	s := FromContext(c)
	if !s.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "account_id": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"account_id":    s.AccountID,
		"email":         s.Email,
	})
}
