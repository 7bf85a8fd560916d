package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func (s *Server) registerStudentAPI(g *echo.Group) {
	g.GET("/me/results", s.queryMyResults, roleMiddleware(RoleStudent))
}

// queryMyResults returns the marks of the authenticated student, grouped by class.
func (s *Server) queryMyResults(ctx echo.Context) error {
	actor := getContextActor(ctx)
	if actor.StudentIndex == "" {
		return errNoStudentIdx
	}
	results, err := s.deps.ExamSvc.StudentResults(ctx.Request().Context(), actor.StudentIndex, ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying student results")
	}
	return ctx.JSON(http.StatusOK, results)
}
