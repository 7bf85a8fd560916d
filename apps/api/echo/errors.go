package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
	errStaleUpload   = echo.NewHTTPError(http.StatusConflict, "superseded by a newer upload")
	errNoStudentIdx  = echo.NewHTTPError(http.StatusForbidden, "no student index in token")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.ValidationError:
			if flds := origErr.FieldMap(); flds != nil {
				message = flds
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *result.DecodeError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case *result.ValidationError:
			code = http.StatusBadRequest
			message = echo.Map{"error": origErr.Reason, "row": origErr.Row, "field": origErr.Field}
		case *result.EditError:
			code = http.StatusBadRequest
			message = echo.Map{"error": origErr.Reason, "index": origErr.Index, "value": origErr.RawValue}
		case *exam.RemoteError:
			code = http.StatusBadGateway
			message = origErr.Error()
			logger.Warn(fmt.Sprintf("data service: %v", origErr), err, getContextActor(ctx))
		default:
			switch {
			case origErr == exam.ErrNotConfirmed:
				code = http.StatusPreconditionFailed
				message = origErr.Error()
			case exam.IsNotFound(origErr):
				code = http.StatusNotFound
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), getContextActor(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
