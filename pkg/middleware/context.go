package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/reqctx"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := req.Context()
			ctx = reqctx.SetRequestID(ctx, requestID)
			ctx = reqctx.SetMethod(ctx, req.Method)
			ctx = reqctx.SetRoute(ctx, req.URL.Path)
			ctx = reqctx.SetRemoteIP(ctx, c.RealIP())
			ctx = reqctx.SetReferer(ctx, req.Referer())

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
