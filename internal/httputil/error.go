package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
)

type errorBody struct {
	Error string `json:"error"`
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	WriteJSON(w, http.StatusNotFound, errorBody{Error: msg})
}

func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
}

func Forbidden(w http.ResponseWriter) {
	WriteJSON(w, http.StatusForbidden, errorBody{Error: "administrator role required"})
}

// Error maps a service error onto a status code. Invariant violations are
// reported as 500 without leaking the broken state to the caller.
func Error(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, bracket.ErrValidation):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, bracket.ErrNotFound):
		NotFound(w, err.Error(), nil)
	case errors.Is(err, bracket.ErrConflict):
		slog.Warn("conflict", "message", msg, "error", err)
		WriteJSON(w, http.StatusConflict, errorBody{Error: "the bracket is busy, try again"})
	default:
		InternalServerError(w, msg, err)
	}
}
