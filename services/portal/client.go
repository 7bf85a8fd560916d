// Package portal implements exam.Repository on top of the school portal's data service.
package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/tidwall/gjson"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

const dateLayout = "2006-01-02"

type client struct {
	baseURL string
	apiKey  string
	rest    *rest.Client
}

var _ exam.Repository = (*client)(nil) // interface compliance check

func NewRepository(conf *core.Config) exam.Repository {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.Portal.BaseURL, "portal.baseURL"),
	).CheckAndPanic()

	return &client{
		baseURL: strings.TrimRight(conf.Portal.BaseURL, "/"),
		apiKey:  conf.Portal.APIKey,
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.Portal.Timeout}},
	}
}

func (c *client) QueryClasses(ctx context.Context) ([]exam.Class, error) {
	body, err := c.do(ctx, "fetch classes", rest.Get, "/classes", nil, nil)
	if err != nil {
		return nil, err
	}
	items := gjson.Get(body, "classes").Array()
	classes := make([]exam.Class, 0, len(items))
	for _, item := range items {
		classes = append(classes, exam.Class{
			ClassID:    int(item.Get("classID").Int()),
			ModuleCode: item.Get("moduleCode").String(),
			ModuleName: item.Get("moduleName").String(),
			Year:       int(item.Get("year").Int()),
		})
	}
	return classes, nil
}

func (c *client) QueryExams(ctx context.Context, classID int) ([]exam.Exam, error) {
	body, err := c.do(ctx, "fetch exams", rest.Get, "/classes/"+strconv.Itoa(classID)+"/exams", nil, exam.ErrClassNotFound)
	if err != nil {
		return nil, err
	}
	items := gjson.Get(body, "exams").Array()
	exams := make([]exam.Exam, 0, len(items))
	for _, item := range items {
		ex, err := parseExam(item)
		if err != nil {
			return nil, err
		}
		if ex.ClassID == 0 {
			ex.ClassID = classID
		}
		exams = append(exams, ex)
	}
	return exams, nil
}

func (c *client) GetExam(ctx context.Context, examID int) (exam.Exam, error) {
	body, err := c.do(ctx, "fetch exam", rest.Get, examPath(examID), nil, exam.ErrExamNotFound)
	if err != nil {
		return exam.Exam{}, err
	}
	return parseExam(gjson.Get(body, "exam"))
}

func (c *client) QueryResults(ctx context.Context, examID int) ([]exam.StudentResult, error) {
	body, err := c.do(ctx, "fetch results", rest.Get, examPath(examID)+"/results", nil, exam.ErrExamNotFound)
	if err != nil {
		return nil, err
	}
	items := gjson.Get(body, "results").Array()
	results := make([]exam.StudentResult, 0, len(items))
	for _, item := range items {
		results = append(results, exam.StudentResult{
			StudentIndex: item.Get("studentIndex").String(),
			StudentName:  item.Get("studentName").String(),
			Year:         int(item.Get("year").Int()),
			Mark:         int(item.Get("mark").Int()),
		})
	}
	return results, nil
}

func (c *client) CreateExamResults(ctx context.Context, ner exam.NewExamResults) (exam.Exam, error) {
	payload := struct {
		ClassID    int        `json:"classID"`
		Type       string     `json:"type"`
		ExamDate   string     `json:"examDate"`
		Allocation null.Int   `json:"allocation"`
		Results    result.Set `json:"results"`
	}{ner.ClassID, ner.ExamType, ner.ExamDate.Format(dateLayout), ner.Allocation, ner.Results}

	body, err := c.do(ctx, "submit results", rest.Post, "/exams", payload, exam.ErrClassNotFound)
	if err != nil {
		return exam.Exam{}, err
	}
	ex, err := parseExam(gjson.Get(body, "exam"))
	if err != nil {
		return exam.Exam{}, err
	}
	if ex.ClassID == 0 {
		ex.ClassID = ner.ClassID
	}
	return ex, nil
}

func (c *client) UpdateResults(ctx context.Context, examID int, set result.Set) error {
	payload := struct {
		ExamID  int        `json:"examID"`
		Results result.Set `json:"results"`
	}{examID, set}
	_, err := c.do(ctx, "submit results", rest.Put, examPath(examID)+"/results", payload, exam.ErrExamNotFound)
	return err
}

func (c *client) DeleteExam(ctx context.Context, examID int) error {
	_, err := c.do(ctx, "delete exam", rest.Delete, examPath(examID), nil, exam.ErrExamNotFound)
	return err
}

func (c *client) QueryStudentMarks(ctx context.Context, studentIndex string) ([]exam.StudentMark, error) {
	body, err := c.do(ctx, "fetch student results", rest.Get, "/students/"+url.PathEscape(studentIndex)+"/results", nil, nil)
	if err != nil {
		return nil, err
	}
	items := gjson.Get(body, "results").Array()
	marks := make([]exam.StudentMark, 0, len(items))
	for _, item := range items {
		if item.Get("hideMarks").Bool() {
			continue
		}
		dateHeld, err := parseDate(item.Get("dateHeld").String())
		if err != nil {
			return nil, err
		}
		marks = append(marks, exam.StudentMark{
			ClassID:  int(item.Get("classID").Int()),
			ExamID:   int(item.Get("examID").Int()),
			ExamType: item.Get("type").String(),
			DateHeld: dateHeld,
			Mark:     int(item.Get("mark").Int()),
		})
	}
	return marks, nil
}

// do sends a request to the data service and returns the body of a successful response.
// A 404 is reported as notFound when given; any other failure is an *exam.RemoteError.
func (c *client) do(ctx context.Context, op string, method rest.Method, path string, payload interface{}, notFound error) (string, error) {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if c.apiKey != "" {
		req.Headers["Authorization"] = "Bearer " + c.apiKey
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", errors.Wrap(err, "encoding payload")
		}
		req.Body = b
		req.Headers["Content-Type"] = "application/json"
	}

	resp, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return "", &exam.RemoteError{Op: op, Message: err.Error()}
	}
	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return "", notFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &exam.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}
	if resp.Body != "" && !gjson.Valid(resp.Body) {
		return "", &exam.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "invalid JSON response"}
	}
	return resp.Body, nil
}

// errorMessage extracts the failure message of a response: its "error" or "message" field, or the status text.
func errorMessage(resp *rest.Response) string {
	if gjson.Valid(resp.Body) {
		for _, path := range []string{"error", "message", "error.message"} {
			if v := gjson.Get(resp.Body, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return http.StatusText(resp.StatusCode)
}

func parseExam(item gjson.Result) (exam.Exam, error) {
	if !item.Exists() {
		return exam.Exam{}, errors.New("exam missing from response")
	}
	dateHeld, err := parseDate(item.Get("dateHeld").String())
	if err != nil {
		return exam.Exam{}, err
	}
	ex := exam.Exam{
		ExamID:    int(item.Get("examID").Int()),
		ClassID:   int(item.Get("classID").Int()),
		Type:      item.Get("type").String(),
		DateHeld:  dateHeld,
		HideMarks: item.Get("hideMarks").Bool(),
	}
	if alloc := item.Get("allocation"); alloc.Exists() && alloc.Type != gjson.Null {
		ex.Allocation = null.IntFrom(int(alloc.Int()))
	}
	return ex, nil
}

// parseDate accepts plain dates & RFC 3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, errors.Wrapf(err, "parsing date %q", s)
}

func examPath(examID int) string {
	return "/exams/" + strconv.Itoa(examID)
}
