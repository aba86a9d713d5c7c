package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DefaultBodyLimit bounds action and login payloads.
const DefaultBodyLimit int64 = 64 << 10

// BodyLimit rejects request bodies larger than limit bytes with 413. A
// non-positive limit uses DefaultBodyLimit.
func BodyLimit(limit int64) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > limit {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", limit))
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)
			return next(c)
		}
	}
}
