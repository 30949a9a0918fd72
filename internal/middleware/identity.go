package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/plantline/convo/pkg/response"
)

const (
	// UserIdHeader carries the authenticated user id, injected by the
	// upstream API gateway after it has performed authentication
	UserIdHeader = "X-User-Id"
	// UserIdKey is the context key for user Id
	UserIdKey = "user_id"
)

// GatewayIdentity requires the gateway-asserted user id on every request
func GatewayIdentity() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		userId := string(c.GetHeader(UserIdHeader))
		if userId == "" {
			response.Unauthorized(ctx, c, "missing user identity")
			c.Abort()
			return
		}

		c.Set(UserIdKey, userId)
		c.Next(ctx)
	}
}

// GetUserId returns the user Id stored by GatewayIdentity
func GetUserId(c *app.RequestContext) string {
	if v, ok := c.Get(UserIdKey); ok {
		if userId, ok := v.(string); ok {
			return userId
		}
	}
	return ""
}
