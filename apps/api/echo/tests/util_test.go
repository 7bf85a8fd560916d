package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/masomo-results/apps/api/echo"
	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	emailsvc "github.com/trezcool/masomo-results/services/email"
	testutil "github.com/trezcool/masomo-results/tests"
)

var (
	teacher = core.Actor{ID: "1", Username: "tom", Name: "Tom Teacher", Email: "tom@test.cd", Roles: []string{RoleTeacher}}
	admin   = core.Actor{ID: "2", Username: "admin", Name: "Admin", Email: "admin@test.cd", Roles: []string{RoleAdmin}}
	student = core.Actor{ID: "3", Username: "awe", Name: "Awe Mbuyi", StudentIndex: "A000001", Roles: []string{RoleStudent}}
	nobody  = core.Actor{ID: "4", Username: "nobody"}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func setup(t *testing.T) (*Server, testutil.Fixtures) {
	_, repo, fx := testutil.OpenDummyDB(t)

	conf := testutil.Config()
	conf.Server.DisableReqLogs = true
	logger := testutil.Logger(conf)
	validate, translator := testutil.NewValidator()

	svc := exam.NewService(repo, emailsvc.NewConsoleServiceMock(conf, logger), logger, validate, translator, conf)
	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		ExamSvc:    svc,
		Validate:   validate,
		Translator: translator,
	})
	return server, fx
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

// newFileRequest sends content as the "file" of a multipart form; no file is sent if filename is empty.
func newFileRequest(t *testing.T, method, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("newFileRequest() failed: %v", err)
		}
		_, _ = fw.Write(content)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newFileRequest() failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, actor core.Actor) string {
	conf := testutil.Config()
	token, err := GenerateToken(NewClaims(actor, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		assert.Empty(t, rec.Body.String())
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, server http.Handler, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// decode unmarshals the body of rec into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s) failed: %v", rec.Body.String(), err)
	}
}
