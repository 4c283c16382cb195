package handler

import (
    "log/slog"
    "net/http"

    "github.com/cockroachdb/errors"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/coral-club-board/internal/repository"
    "github.com/iliyamo/coral-club-board/internal/reservation"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
    switch {
    case errors.Is(err, repository.ErrStoreUnavailable):
        return http.StatusServiceUnavailable
    case errors.IsAny(err, reservation.ErrTentNotFound, reservation.ErrReservationNotFound):
        return http.StatusNotFound
    case errors.IsAny(err, reservation.ErrTentUnavailable, reservation.ErrReservationClosed, reservation.ErrActiveHolds):
        return http.StatusConflict
    case reservation.IsValidation(err), errors.Is(err, repository.ErrNotNumeric):
        return http.StatusBadRequest
    default:
        return http.StatusInternalServerError
    }
}

// fail writes {ok:false, error} with the status matching err.  Internal
// errors are not echoed to the caller.
func fail(c echo.Context, err error) error {
    status := statusOf(err)
    msg := err.Error()
    switch status {
    case http.StatusServiceUnavailable:
        msg = "store unavailable"
    case http.StatusInternalServerError:
        slog.Error("request failed", "path", c.Path(), "err", err)
        msg = "internal error"
    }
    return c.JSON(status, echo.Map{"ok": false, "error": msg})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": msg})
}
