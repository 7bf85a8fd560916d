package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

func (s *Server) registerExamAPI(g *echo.Group) {
	staff := staffMiddleware()

	g.GET("/classes", s.queryClasses, staff)
	g.GET("/classes/:id/exams", s.queryExams, staff)

	g.POST("/exams", s.createExam, staff)
	g.GET("/exams/:id", s.retrieveExam, staff)
	g.DELETE("/exams/:id", s.destroyExam, staff)
	g.GET("/exams/:id/results", s.queryResults, staff)

	g.POST("/results/preview", s.previewResults, staff)
}

// Handlers

func (s *Server) queryClasses(ctx echo.Context) error {
	classes, err := s.deps.ExamSvc.Classes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (s *Server) queryExams(ctx echo.Context) error {
	classID, err := bindIDParam(ctx, "id")
	if err != nil {
		return err
	}
	exams, err := s.deps.ExamSvc.Exams(ctx.Request().Context(), classID)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (s *Server) retrieveExam(ctx echo.Context) error {
	examID, err := bindIDParam(ctx, "id")
	if err != nil {
		return err
	}
	ex, err := s.deps.ExamSvc.Exam(ctx.Request().Context(), examID)
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (s *Server) queryResults(ctx echo.Context) error {
	examID, err := bindIDParam(ctx, "id")
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	ex, err := s.deps.ExamSvc.Exam(reqCtx, examID)
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	results, err := s.deps.ExamSvc.Results(reqCtx, examID, bindResultsFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	return ctx.JSON(http.StatusOK, ResultsResponse{Exam: ex, Results: results, Summary: exam.Summarize(results)})
}

// createExam records a new exam with results sent as JSON, eg: by a script or after a preview.
func (s *Server) createExam(ctx echo.Context) error {
	var data NewExamRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExamRequest")
	}
	ex, err := s.deps.ExamSvc.UploadResults(
		ctx.Request().Context(),
		data.NewExamResults(data.Results),
		exam.Confirmed(data.Confirm),
	)
	if err != nil {
		return errors.Wrap(err, "uploading results")
	}
	return ctx.JSON(http.StatusCreated, ex)
}

func (s *Server) destroyExam(ctx echo.Context) error {
	examID, err := bindIDParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = s.deps.ExamSvc.DeleteExam(ctx.Request().Context(), examID, nil, exam.Confirmed(bindConfirmParam(ctx))); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	s.reviews.resetExam(examID)
	return ctx.NoContent(http.StatusNoContent)
}

// previewResults runs an uploaded spreadsheet through the ingestion pipeline without saving anything.
func (s *Server) previewResults(ctx echo.Context) error {
	f, name, err := bindFile(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	set, err := result.IngestFrom(f, name, s.deps.Conf.Upload.MaxSize, s.rows)
	if err != nil {
		return errors.Wrap(err, "ingesting results")
	}
	return ctx.JSON(http.StatusOK, PreviewResponse{Results: set, Summary: summarizeSet(set)})
}
