package echoapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

const dateLayout = "2006-01-02"

var fileField = "file"

// Date is a calendar day; accepts "2006-01-02" or RFC3339 timestamps.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("date must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return errors.Errorf("invalid date %q: expected YYYY-MM-DD", s)
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

type (
	// NewExamRequest is the form of the upload screen.
	NewExamRequest struct {
		ClassID    int        `json:"class_id"`
		ExamType   string     `json:"exam_type"`
		ExamDate   Date       `json:"exam_date"`
		Allocation null.Int   `json:"allocation"`
		Results    result.Set `json:"results"`
		Confirm    bool       `json:"confirm"`
	}

	NewReviewRequest struct {
		ExamID int `json:"exam_id"` // 0 opens an upload session
	}

	EditRequest struct {
		Index string `json:"index"`
		Value string `json:"value"`
	}

	ConfirmRequest struct {
		Confirm bool `json:"confirm"`
	}

	ResultsResponse struct {
		Exam    exam.Exam            `json:"exam"`
		Results []exam.StudentResult `json:"results"`
		Summary exam.Summary         `json:"summary"`
	}

	PreviewResponse struct {
		Results result.Set   `json:"results"`
		Summary exam.Summary `json:"summary"`
	}
)

func (req NewExamRequest) NewExamResults(results result.Set) exam.NewExamResults {
	return exam.NewExamResults{
		ClassID:    req.ClassID,
		ExamType:   req.ExamType,
		ExamDate:   req.ExamDate.Time,
		Allocation: req.Allocation,
		Results:    results,
	}
}

// bindIDParam parses the path parameter name; unparsable ids are not found.
func bindIDParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func bindResultsFilter(ctx echo.Context) exam.ResultsFilter {
	return exam.ResultsFilter{
		Search:   ctx.QueryParam("search"),
		Ordering: ctx.QueryParam("ordering"),
	}
}

func bindConfirmParam(ctx echo.Context) bool {
	confirm, _ := strconv.ParseBool(ctx.QueryParam("confirm"))
	return confirm
}

// bindFile returns the uploaded spreadsheet of the multipart form.
func bindFile(ctx echo.Context) (multipart.File, string, error) {
	fh, err := ctx.FormFile(fileField)
	if err != nil {
		return nil, "", core.NewValidationError(nil, core.FieldError{Field: fileField, Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", errors.Wrap(err, "opening uploaded file")
	}
	return f, fh.Filename, nil
}

func summarizeSet(set result.Set) exam.Summary {
	results := make([]exam.StudentResult, len(set))
	for i, r := range set {
		results[i] = exam.StudentResult{StudentIndex: r.Index, Mark: r.Mark}
	}
	return exam.Summarize(results)
}
