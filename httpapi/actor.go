package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-initiatives/core"
)

// ActorClaims is the access token payload issued by the identity service.
type ActorClaims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

// JWTActors resolves the caller from an HS256 bearer token. Missing, expired
// or foreign tokens resolve to the anonymous actor so the action layer can
// answer with its own unauthorized error.
func JWTActors(secret string) ActorResolver {
	key := []byte(strings.TrimSpace(secret))
	return func(c *gin.Context) core.Actor {
		if len(key) == 0 {
			return core.Actor{}
		}
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			return core.Actor{}
		}
		parsed, err := jwt.ParseWithClaims(token, &ActorClaims{}, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			return core.Actor{}
		}
		claims, ok := parsed.Claims.(*ActorClaims)
		if !ok {
			return core.Actor{}
		}
		userID := strings.TrimSpace(claims.UserID)
		if userID == "" {
			userID = strings.TrimSpace(claims.Subject)
		}
		return core.Actor{UserID: userID}
	}
}
