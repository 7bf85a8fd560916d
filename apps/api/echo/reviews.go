package echoapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

var (
	errReplaceSaved  = core.NewValidationError(errors.New("the results of a saved exam cannot be replaced by a file"))
	errReloadUnsaved = core.NewValidationError(errors.New("nothing to reload: the results have not been saved yet"))
)

type (
	// reviewSession is a Stager owned by one user across requests.
	// An edit session reviews the results of an exam; an upload session stages the results of a spreadsheet
	// until they are saved as a new exam, after which it becomes an edit session.
	reviewSession struct {
		mu     sync.Mutex
		id     string
		owner  string
		examID int // 0 for upload sessions
		stager *result.Stager
		intake result.Intake
	}

	// reviewStore keeps review sessions in memory; idle sessions expire.
	reviewStore struct {
		cache *cache.Cache
	}

	ReviewResponse struct {
		ID      string          `json:"id"`
		ExamID  int             `json:"exam_id"`
		Results result.Set      `json:"results"` // working copy, filtered
		Count   int             `json:"count"`
		Changes []result.Change `json:"changes"`
		Pending []string        `json:"pending"`
		Dirty   bool            `json:"dirty"`
		Summary exam.Summary    `json:"summary"`
	}
)

func newReviewStore(ttl time.Duration) *reviewStore {
	return &reviewStore{cache: cache.New(ttl, 2*ttl)}
}

func (rs *reviewStore) add(sess *reviewSession) {
	rs.cache.SetDefault(sess.id, sess)
}

// get returns the session id of owner and extends its lifetime.
func (rs *reviewStore) get(id, owner string) (*reviewSession, bool) {
	v, ok := rs.cache.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*reviewSession)
	if sess.owner != owner {
		return nil, false
	}
	rs.cache.SetDefault(id, sess)
	return sess, true
}

func (rs *reviewStore) remove(id string) {
	rs.cache.Delete(id)
}

// resetExam empties the sessions reviewing a deleted exam.
func (rs *reviewStore) resetExam(examID int) {
	for _, item := range rs.cache.Items() {
		sess := item.Object.(*reviewSession)
		sess.mu.Lock()
		if sess.examID == examID {
			sess.stager.Reset()
		}
		sess.mu.Unlock()
	}
}

// view must be called with sess.mu held.
func (sess *reviewSession) view(search string) ReviewResponse {
	working := sess.stager.Working()
	results := sess.stager.Filter(core.CleanString(search))
	if results == nil {
		results = result.Set{}
	}
	changes := sess.stager.Changes()
	if changes == nil {
		changes = []result.Change{}
	}
	return ReviewResponse{
		ID:      sess.id,
		ExamID:  sess.examID,
		Results: results,
		Count:   len(working),
		Changes: changes,
		Pending: sess.stager.Pending(),
		Dirty:   sess.stager.Dirty(),
		Summary: summarizeSet(working),
	}
}

func (s *Server) registerReviewAPI(g *echo.Group) {
	rg := g.Group("/reviews", staffMiddleware())
	rg.POST("", s.openReview)

	dg := rg.Group("/:id")
	dg.GET("", s.retrieveReview)
	dg.PATCH("", s.editReview)
	dg.DELETE("", s.closeReview)
	dg.PUT("/file", s.uploadReviewFile)
	dg.POST("/save", s.saveReview)
	dg.POST("/reload", s.reloadReview)
	dg.POST("/discard", s.discardReview)
}

func (s *Server) getReview(ctx echo.Context) (*reviewSession, error) {
	sess, ok := s.reviews.get(ctx.Param("id"), getContextActor(ctx).ID)
	if !ok {
		return nil, errHttpNotFound
	}
	return sess, nil
}

// Handlers

func (s *Server) openReview(ctx echo.Context) error {
	var data NewReviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReviewRequest")
	}

	sess := &reviewSession{
		id:     uuid.NewString(),
		owner:  getContextActor(ctx).ID,
		examID: data.ExamID,
		stager: result.NewStager(),
	}
	if sess.examID != 0 {
		if err := s.deps.ExamSvc.Review(ctx.Request().Context(), sess.examID, sess.stager, nil); err != nil {
			return errors.Wrap(err, "loading results")
		}
	}
	s.reviews.add(sess)
	return ctx.JSON(http.StatusCreated, sess.view(""))
}

func (s *Server) retrieveReview(ctx echo.Context) error {
	sess, err := s.getReview(ctx)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return ctx.JSON(http.StatusOK, sess.view(ctx.QueryParam("search")))
}

func (s *Server) editReview(ctx echo.Context) error {
	sess, err := s.getReview(ctx)
	if err != nil {
		return err
	}
	var data EditRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditRequest")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err = sess.stager.ApplyEdit(core.CleanString(data.Index, false), data.Value); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.view(ctx.QueryParam("search")))
}

func (s *Server) closeReview(ctx echo.Context) error {
	sess, err := s.getReview(ctx)
	if err != nil {
		return err
	}
	s.reviews.remove(sess.id)
	return ctx.NoContent(http.StatusNoContent)
}

// uploadReviewFile stages the results of a spreadsheet in an upload session.
// Only the newest of concurrent uploads is staged; the older ones get a 409.
func (s *Server) uploadReviewFile(ctx echo.Context) error {
	sess, err := s.getReview(ctx)
	if err != nil {
		return err
	}
	f, name, err := bindFile(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	seq := sess.intake.Begin()
	set, err := result.IngestFrom(f, name, s.deps.Conf.Upload.MaxSize, s.rows)
	if err != nil {
		return errors.Wrap(err, "ingesting results")
	}

	var (
		resp  ReviewResponse
		saved bool
	)
	applied := sess.intake.Complete(seq, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if saved = sess.examID != 0; saved {
			return
		}
		sess.stager.Load(set)
		resp = sess.view("")
	})
	switch {
	case !applied:
		return errStaleUpload
	case saved:
		return errReplaceSaved
	}
	return ctx.JSON(http.StatusOK, resp)
}

// saveReview submits the working copy: edits of an exam's results, or the results of a new exam.
func (s *Server) saveReview(ctx echo.Context) error {
	sess, err := s.getReview(ctx)
	if err != nil {
		return err
	}
	var data NewExamRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExamRequest")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	reqCtx := ctx.Request().Context()
	confirm := exam.Confirmed(data.Confirm)
	if sess.examID != 0 {
		if err = s.deps.ExamSvc.SaveEdits(reqCtx, sess.examID, sess.stager, confirm); err != nil {
			return errors.Wrap(err, "saving edits")
		}
		return ctx.JSON(http.StatusOK, sess.view(""))
	}

	if err = exam.CheckPending(sess.stager); err != nil {
		return err
	}
	ex, err := s.deps.ExamSvc.UploadResults(reqCtx, data.NewExamResults(sess.stager.Working()), confirm)
	if err != nil {
		return errors.Wrap(err, "uploading results")
	}
	sess.stager.Commit()
	sess.examID = ex.ExamID
	return ctx.JSON(http.StatusCreated, sess.view(""))
}

// reloadReview fetches the results of the session's exam again; unsaved changes are lost.
func (s *Server) reloadReview(ctx echo.Context) error {
	sess, err := s.getReview(ctx)
	if err != nil {
		return err
	}
	var data ConfirmRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.examID == 0 {
		return errReloadUnsaved
	}
	if err = s.deps.ExamSvc.Review(ctx.Request().Context(), sess.examID, sess.stager, exam.Confirmed(data.Confirm)); err != nil {
		return errors.Wrap(err, "reloading results")
	}
	return ctx.JSON(http.StatusOK, sess.view(""))
}

func (s *Server) discardReview(ctx echo.Context) error {
	sess, err := s.getReview(ctx)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.stager.Discard()
	return ctx.JSON(http.StatusOK, sess.view(""))
}
