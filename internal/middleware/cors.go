package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rs/cors"
)

// CORS lets the static board page talk to the API from another origin.
func CORS(origins []string) echo.MiddlewareFunc {
    c := cors.New(cors.Options{
        AllowedOrigins: origins,
        AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
        AllowedHeaders: []string{"Authorization", "Content-Type"},
        MaxAge:         600,
    })
    return echo.WrapMiddleware(c.Handler)
}
