package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/core/notes"
)

var errArtifactNotReady = echo.NewHTTPError(http.StatusConflict, "notes pdf is not ready")

// handleError はエラーをHTTPレスポンスに変換する
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code = http.StatusInternalServerError
		body = echo.Map{"error": http.StatusText(http.StatusInternalServerError)}

		verr *catalog.ValidationError
		berr *echo.BindingError
		herr *echo.HTTPError
	)

	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Message
		}
		code = http.StatusBadRequest
		body = echo.Map{"error": "validation failed", "fields": fields}
	case errors.As(err, &berr):
		code = http.StatusBadRequest
		body = echo.Map{"error": "invalid parameter", "fields": map[string]string{berr.Field: "invalid value"}}
	case errors.Is(err, catalog.ErrValidation):
		code = http.StatusBadRequest
		body = echo.Map{"error": err.Error()}
	case errors.Is(err, job.ErrJobNotFound), errors.Is(err, notes.ErrNotesNotFound):
		code = http.StatusNotFound
		body = echo.Map{"error": err.Error()}
	case errors.Is(err, job.ErrTooManyJobs):
		code = http.StatusTooManyRequests
		body = echo.Map{"error": err.Error()}
	case errors.Is(err, job.ErrJobTerminal), errors.Is(err, job.ErrInvalidTransition):
		code = http.StatusConflict
		body = echo.Map{"error": err.Error()}
	case errors.As(err, &herr):
		code = herr.Code
		body = echo.Map{"error": herr.Message}
	default:
		s.logger.Error("リクエスト処理に失敗しました",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		s.logger.Error("エラーレスポンスの送信に失敗しました", "error", err)
	}
}
