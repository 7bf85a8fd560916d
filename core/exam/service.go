package exam

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/result"
)

const (
	classesCacheKey   = "classes"
	examsCacheKeyPfx  = "exams:"
	resultsSavedEmail = "results_saved"
)

type (
	// Repository is the data service holding classes, exams & results.
	Repository interface {
		// QueryClasses returns all classes ordered by year then module code.
		QueryClasses(ctx context.Context) ([]Class, error)
		// QueryExams returns the exams of a class, most recent first.
		QueryExams(ctx context.Context, classID int) ([]Exam, error)
		GetExam(ctx context.Context, examID int) (Exam, error)
		QueryResults(ctx context.Context, examID int) ([]StudentResult, error)
		CreateExamResults(ctx context.Context, ner NewExamResults) (Exam, error)
		// UpdateResults replaces the marks of an exam's results with those of set.
		UpdateResults(ctx context.Context, examID int, set result.Set) error
		// DeleteExam deletes an exam and all its results.
		DeleteExam(ctx context.Context, examID int) error
		// QueryStudentMarks returns a student's marks, hidden exams excluded.
		QueryStudentMarks(ctx context.Context, studentIndex string) ([]StudentMark, error)
	}

	Service struct {
		repo       Repository
		mailSvc    core.EmailService
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		cache      *cache.Cache
		appName    string
	}
)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:       repo,
		mailSvc:    mailSvc,
		logger:     logger,
		validate:   validate,
		translator: translator,
		cache:      cache.New(conf.Cache.TTL, 2*conf.Cache.TTL),
		appName:    conf.AppName,
	}
}

// Classes returns all classes. The list is cached.
func (svc *Service) Classes(ctx context.Context) ([]Class, error) {
	if classes, ok := svc.cache.Get(classesCacheKey); ok {
		return classes.([]Class), nil
	}
	classes, err := svc.repo.QueryClasses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	svc.cache.Set(classesCacheKey, classes, cache.DefaultExpiration)
	return classes, nil
}

func (svc *Service) Class(ctx context.Context, classID int) (Class, error) {
	classes, err := svc.Classes(ctx)
	if err != nil {
		return Class{}, err
	}
	for _, c := range classes {
		if c.ClassID == classID {
			return c, nil
		}
	}
	return Class{}, ErrClassNotFound
}

// Exams returns the exams of a class. Lists are cached per class.
func (svc *Service) Exams(ctx context.Context, classID int) ([]Exam, error) {
	key := examsCacheKeyPfx + strconv.Itoa(classID)
	if exams, ok := svc.cache.Get(key); ok {
		return exams.([]Exam), nil
	}
	if _, err := svc.Class(ctx, classID); err != nil {
		return nil, err
	}
	exams, err := svc.repo.QueryExams(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	svc.cache.Set(key, exams, cache.DefaultExpiration)
	return exams, nil
}

func (svc *Service) Exam(ctx context.Context, examID int) (Exam, error) {
	return svc.repo.GetExam(ctx, examID)
}

// Results returns the results of an exam, filtered & ordered. Results are ordered by index by default.
func (svc *Service) Results(ctx context.Context, examID int, filter ResultsFilter) ([]StudentResult, error) {
	less, err := resultsLess(core.ParseOrderings(filter.Ordering))
	if err != nil {
		return nil, err
	}
	results, err := svc.repo.QueryResults(ctx, examID)
	if err != nil {
		return nil, errors.Wrap(err, "querying results")
	}

	search := core.CleanString(filter.Search)
	filtered := make([]StudentResult, 0, len(results))
	for _, r := range results {
		if search == "" || core.ContainsFold(r.StudentIndex, search) || core.ContainsFold(r.StudentName, search) {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return less(filtered[i], filtered[j]) })
	return filtered, nil
}

// ReviewSet returns the results of an exam as a Set, ready to be staged.
func (svc *Service) ReviewSet(ctx context.Context, examID int) (result.Set, error) {
	results, err := svc.repo.QueryResults(ctx, examID)
	if err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	records := make([]result.Record, len(results))
	for i, r := range results {
		records[i] = result.Record{Index: r.StudentIndex, Mark: r.Mark}
	}
	return result.NewSet(records...), nil
}

// Review (re)loads the results of an exam into stager.
// Unsaved changes in stager are only discarded once confirmed.
func (svc *Service) Review(ctx context.Context, examID int, stager *result.Stager, confirm Confirm) error {
	if stager.Dirty() && !confirm.ask("discard unsaved changes") {
		return ErrNotConfirmed
	}
	set, err := svc.ReviewSet(ctx, examID)
	if err != nil {
		return err
	}
	stager.Load(set)
	return nil
}

// UploadResults validates ner then, once confirmed, records the new exam and its results.
func (svc *Service) UploadResults(ctx context.Context, ner NewExamResults, confirm Confirm) (Exam, error) {
	if err := ner.Validate(svc.validate, svc.translator); err != nil {
		return Exam{}, err
	}
	class, err := svc.Class(ctx, ner.ClassID)
	if err != nil {
		if IsNotFound(err) {
			return Exam{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Exam{}, err
	}

	action := fmt.Sprintf("save %d result(s) of %s for %s", len(ner.Results), ner.ExamType, class.ModuleCode)
	if !confirm.ask(action) {
		return Exam{}, ErrNotConfirmed
	}

	ex, err := svc.repo.CreateExamResults(ctx, ner)
	if err != nil {
		return Exam{}, errors.Wrap(err, "creating exam results")
	}
	svc.cache.Delete(examsCacheKeyPfx + strconv.Itoa(ner.ClassID))

	svc.notify(ctx, "uploaded", class, ex, ner.Results)
	return ex, nil
}

// SaveEdits submits the working copy of stager as the results of an exam, once confirmed.
// stager's baseline only advances when the data service acknowledged the results.
func (svc *Service) SaveEdits(ctx context.Context, examID int, stager *result.Stager, confirm Confirm) error {
	if err := CheckPending(stager); err != nil {
		return err
	}
	ex, err := svc.repo.GetExam(ctx, examID)
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}

	working := stager.Working()
	action := fmt.Sprintf("save %d change(s) to the results of exam %d", len(stager.Changes()), examID)
	if !confirm.ask(action) {
		return ErrNotConfirmed
	}

	if err = svc.repo.UpdateResults(ctx, examID, working); err != nil {
		return errors.Wrap(err, "updating results")
	}
	stager.Commit()

	if class, err := svc.Class(ctx, ex.ClassID); err == nil {
		svc.notify(ctx, "updated", class, ex, working)
	}
	return nil
}

// CheckPending returns a *core.ValidationError listing the rows of stager left without a mark, if any.
func CheckPending(stager *result.Stager) error {
	pending := stager.Pending()
	if len(pending) == 0 {
		return nil
	}
	flds := make([]core.FieldError, len(pending))
	for i, index := range pending {
		flds[i] = core.FieldError{Field: index, Error: "a mark is required"}
	}
	return core.NewValidationError(errors.New("some marks are missing"), flds...)
}

// DeleteExam deletes an exam and all its results, once confirmed. stager, if any, is emptied on success.
func (svc *Service) DeleteExam(ctx context.Context, examID int, stager *result.Stager, confirm Confirm) error {
	ex, err := svc.repo.GetExam(ctx, examID)
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	if !confirm.ask(fmt.Sprintf("delete exam %d and all its results", examID)) {
		return ErrNotConfirmed
	}

	if err = svc.repo.DeleteExam(ctx, examID); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	svc.cache.Delete(examsCacheKeyPfx + strconv.Itoa(ex.ClassID))
	if stager != nil {
		stager.Reset()
	}
	return nil
}

// StudentResults returns a student's marks grouped by class.
// search does a case-insensitive match on the module code or name.
func (svc *Service) StudentResults(ctx context.Context, studentIndex, search string) ([]ClassResults, error) {
	var (
		classes []Class
		marks   []StudentMark
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		classes, err = svc.Classes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		marks, err = svc.repo.QueryStudentMarks(gctx, studentIndex)
		return errors.Wrap(err, "querying student marks")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byClass := make(map[int][]StudentMark)
	for _, m := range marks {
		byClass[m.ClassID] = append(byClass[m.ClassID], m)
	}

	search = core.CleanString(search)
	out := make([]ClassResults, 0, len(byClass))
	for _, c := range classes {
		cMarks, ok := byClass[c.ClassID]
		if !ok {
			continue
		}
		if search != "" && !(core.ContainsFold(c.ModuleCode, search) || core.ContainsFold(c.ModuleName, search)) {
			continue
		}
		sort.SliceStable(cMarks, func(i, j int) bool { return cMarks[i].DateHeld.Before(cMarks[j].DateHeld) })
		out = append(out, ClassResults{Class: c, Marks: cMarks, Average: Average(cMarks)})
	}
	return out, nil
}

// notify emails the actor of ctx, if known, about saved results.
func (svc *Service) notify(ctx context.Context, action string, class Class, ex Exam, set result.Set) {
	actor, ok := core.ActorFrom(ctx)
	if !ok || actor.Email == "" {
		return
	}
	marks := make([]StudentResult, len(set))
	for i, r := range set {
		marks[i] = StudentResult{StudentIndex: r.Index, Mark: r.Mark}
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: actor.Name, Address: actor.Email}},
		Subject:      fmt.Sprintf("%s results %s", class.ModuleCode, action),
		TemplateName: resultsSavedEmail,
		TemplateData: notification{
			Action:     action,
			Count:      len(set),
			Mean:       Summarize(marks).Mean,
			ExamType:   ex.Type,
			DateHeld:   ex.DateHeld,
			ModuleCode: class.ModuleCode,
			ModuleName: class.ModuleName,
		},
	})
}

// resultsLess builds the comparison of results from orderings; index ascending breaks ties.
func resultsLess(orderings []core.DBOrdering) (func(a, b StudentResult) bool, error) {
	for _, ord := range orderings {
		switch ord.Field {
		case "student_index", "student_name", "year", "mark":
		default:
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: "ordering",
				Error: fmt.Sprintf("cannot order by %q", ord.Field),
			})
		}
	}
	return func(a, b StudentResult) bool {
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "student_index":
				cmp = strings.Compare(a.StudentIndex, b.StudentIndex)
			case "student_name":
				cmp = strings.Compare(a.StudentName, b.StudentName)
			case "year":
				cmp = a.Year - b.Year
			case "mark":
				cmp = a.Mark - b.Mark
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return a.StudentIndex < b.StudentIndex
	}, nil
}
