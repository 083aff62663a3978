package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/service"
)

// ErrResponse is the body of every error reply.
type ErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	Code           string `json:"error"`
	Message        string `json:"message"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errInvalidRequest(code string, err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusBadRequest, Code: code, Message: err.Error()}
}

func errNotFound(code string, err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusNotFound, Code: code, Message: err.Error()}
}

func errUnexpected(err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusInternalServerError, Code: "internal_error", Message: "unexpected server error"}
}

// errorRenderer maps service and ledger errors onto HTTP replies.
func errorRenderer(err error) render.Renderer {
	switch {
	case errors.Is(err, service.ErrInvalidBadgeID):
		return errInvalidRequest("invalid_badge_id", err)
	case errors.Is(err, service.ErrInvalidAccessPointID):
		return errInvalidRequest("invalid_access_point_id", err)
	case errors.Is(err, service.ErrInvalidUserID):
		return errInvalidRequest("invalid_user_id", err)
	case errors.Is(err, service.ErrInvalidObservedAt):
		return errInvalidRequest("invalid_observed_at", err)
	case errors.Is(err, service.ErrInvalidDirection):
		return errInvalidRequest("invalid_direction", err)
	case errors.Is(err, service.ErrInvalidStatus):
		return errInvalidRequest("invalid_status", err)

	case errors.Is(err, service.ErrUnknownBadge):
		return errNotFound("unknown_badge", err)
	case errors.Is(err, service.ErrUnknownAccessPoint):
		return errNotFound("unknown_access_point", err)

	case errors.Is(err, ledger.ErrLedgerNotEmpty):
		return &ErrResponse{Err: err, HTTPStatusCode: http.StatusConflict, Code: "ledger_not_empty", Message: err.Error()}
	}

	var rej *ledger.RejectionError
	if errors.As(err, &rej) {
		return &ErrResponse{Err: err, HTTPStatusCode: http.StatusUnprocessableEntity, Code: string(rej.Reason), Message: rej.Error()}
	}
	return errUnexpected(err)
}

// renderError writes err and logs it when it is a server fault.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	rnd := errorRenderer(err)
	if e, ok := rnd.(*ErrResponse); ok && e.HTTPStatusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	_ = render.Render(w, r, rnd)
}
