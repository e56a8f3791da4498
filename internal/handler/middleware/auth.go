package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/pkg/errs"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ctxActorIDKey   = "actor_id"
	ctxActorRoleKey = "actor_role"
)

var errInvalidToken = errs.New("invalid token")

var roleHierarchy = map[booking.Actor]int{
	booking.ActorClient:     1,
	booking.ActorConsultant: 2,
	booking.ActorAdmin:      3,
}

// AuthMiddleware authenticates callers from a bearer token issued by the
// platform's identity service. The engine only needs the actor's ID and role.
type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(cfg config.JWTConfig) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(cfg.Secret)}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			c.Abort()
			return
		}

		actorID, role, err := m.validateToken(token)
		if err != nil {
			slog.Warn("Token validation failed in auth middleware", "error", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ctxActorIDKey, actorID)
		c.Set(ctxActorRoleKey, role)
		c.Next()
	}
}

func (m *AuthMiddleware) RequireRoleAtLeast(minRole booking.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetActorRole(c)
		if !ok {
			// Unexpected error: should be used after RequireAuth()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		if !hasMinimumRole(role, minRole) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) validateToken(token string) (uuid.UUID, booking.Actor, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return uuid.Nil, "", errs.Wrap(err, "failed to parse token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, "", errInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, "", errs.Wrap(err, "token has no subject")
	}
	actorID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", errs.Wrap(err, "token subject is not a UUID")
	}

	roleStr, _ := claims["role"].(string)
	role := booking.Actor(roleStr)
	if _, known := roleHierarchy[role]; !known {
		return uuid.Nil, "", errInvalidToken
	}
	return actorID, role, nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}

func hasMinimumRole(role, minRole booking.Actor) bool {
	level, ok := roleHierarchy[role]
	minLevel, minOK := roleHierarchy[minRole]
	return ok && minOK && level >= minLevel
}

func GetActorID(c *gin.Context) (uuid.UUID, bool) {
	actorID, exists := c.Get(ctxActorIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := actorID.(uuid.UUID)
	return id, ok
}

func GetActorRole(c *gin.Context) (booking.Actor, bool) {
	actorRole, exists := c.Get(ctxActorRoleKey)
	if !exists {
		return "", false
	}
	role, ok := actorRole.(booking.Actor)
	return role, ok
}
