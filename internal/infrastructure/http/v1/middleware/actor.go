package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
)

// HeaderActorID carries the operator id when token auth is disabled (dev mode).
const HeaderActorID = "X-Actor-ID"

// ActorClaims are the identity claims the engine reads from a token issued
// by the upstream auth service. Authorization decisions stay upstream; only
// the identity is used here (audit trail, seller attribution).
type ActorClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor middleware extracts the operator identity and populates ActorContext.
//
// With a non-empty secret it requires a valid Bearer token signed with HMAC.
// With an empty secret (local development) it falls back to the X-Actor-ID
// header.
func Actor(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			actorID := c.GetHeader(HeaderActorID)
			if actorID == "" {
				abortUnauthorized(c, "missing "+HeaderActorID+" header")
				return
			}
			setActor(c, &appctx.ActorContext{ActorID: actorID})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims := &ActorClaims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
		if issuer != "" {
			opts = append(opts, jwt.WithIssuer(issuer))
		}

		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, opts...)
		if err != nil || !token.Valid || claims.Subject == "" {
			abortUnauthorized(c, "invalid token")
			return
		}

		setActor(c, &appctx.ActorContext{
			ActorID:     claims.Subject,
			DisplayName: claims.Name,
		})
	}
}

func setActor(c *gin.Context, actor *appctx.ActorContext) {
	ctx := appctx.WithActor(c.Request.Context(), actor)
	c.Request = c.Request.WithContext(ctx)

	// Store in gin context for easy access
	c.Set("actor_id", actor.ActorID)

	c.Next()
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
