package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
)

// Имена JWT claims
const (
	jwtClaimUserID = "user_id"
	jwtClaimName   = "name"
	jwtClaimAvatar = "avatar"
	jwtClaimSkill  = "skill"
)

// Identity is the authenticated caller as described by its token.
type Identity struct {
	ID          string
	DisplayName string
	Avatar      *string
	Skill       float64
}

func GetIdentityFromContext(ctx context.Context) (Identity, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("user claims not found in context or invalid type")
	}

	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return Identity{}, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	var id string
	switch v := userIDClaim.(type) {
	case float64:
		if v != float64(int64(v)) || v <= 0 {
			return Identity{}, fmt.Errorf("invalid user ID value in '%s' claim: %v", jwtClaimUserID, v)
		}
		id = strconv.FormatInt(int64(v), 10)
	case string:
		if v == "" {
			return Identity{}, fmt.Errorf("empty '%s' claim", jwtClaimUserID)
		}
		id = v
	default:
		return Identity{}, fmt.Errorf("invalid type for '%s' claim: expected float64 or string, got %T", jwtClaimUserID, userIDClaim)
	}

	identity := Identity{ID: id}
	if name, ok := claims[jwtClaimName].(string); ok {
		identity.DisplayName = name
	}
	if avatar, ok := claims[jwtClaimAvatar].(string); ok && avatar != "" {
		identity.Avatar = &avatar
	}
	if skill, ok := claims[jwtClaimSkill].(float64); ok {
		identity.Skill = skill
	}
	return identity, nil
}
