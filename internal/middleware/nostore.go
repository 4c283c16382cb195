package middleware

import "github.com/labstack/echo/v4"

// NoStore marks every response as uncacheable.  Clients poll the revision
// and must never be served a stale copy by a proxy or the browser.
func NoStore() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            h := c.Response().Header()
            h.Set("Cache-Control", "no-store")
            h.Set("Pragma", "no-cache")
            return next(c)
        }
    }
}
