package main

import (
	"bytes"
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo-results/apps/api/echo"
	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
	emailsvc "github.com/trezcool/masomo-results/services/email"
	testutil "github.com/trezcool/masomo-results/tests"
)

func TestMain(m *testing.M) {
	core.ParseEmailTemplates(testutil.Logger(testutil.Config()))
	os.Exit(m.Run())
}

func setup(t *testing.T) (*commandLine, *bytes.Buffer, testutil.Fixtures) {
	_, repo, fx := testutil.OpenDummyDB(t)

	conf := testutil.Config()
	logger := testutil.Logger(conf)
	validate, translator := testutil.NewValidator()
	out := new(bytes.Buffer)

	isTerminalFunc = func(int) bool { return false }
	readLineFunc = func() (string, error) { return "", nil }

	return &commandLine{
		conf:       conf,
		out:        out,
		examSvc:    exam.NewService(repo, emailsvc.NewConsoleServiceMock(conf, logger), logger, validate, translator, conf),
		validate:   validate,
		translator: translator,
	}, out, fx
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "token: no args", args: []string{"token"}, wantErr: errHelp},
		{name: "upload: no args", args: []string{"upload"}, wantErr: errHelp},
		{name: "view: no args", args: []string{"view"}, wantErr: errHelp},
		{name: "edit: no edits", args: []string{"edit", "-exam", "1"}, wantErr: errHelp},
		{name: "edit: invalid edit", args: []string{"edit", "-exam", "1", "-set", "lol"}, wantErrStr: `invalid value "lol" for flag -set: "lol" must be of form INDEX=MARK`},
		{name: "delete: no args", args: []string{"delete"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	var calls []string
	record := func(name string) func(*sql.DB, fs.FS, string) error {
		return func(_ *sql.DB, _ fs.FS, dir string) error {
			calls = append(calls, name+" "+dir)
			return nil
		}
	}
	recordTo := func(name string) func(*sql.DB, fs.FS, string, int64) error {
		return func(_ *sql.DB, _ fs.FS, dir string, version int64) error {
			calls = append(calls, name+" "+dir+" "+strconv.FormatInt(version, 10))
			return nil
		}
	}
	orig := gooseMigrator
	t.Cleanup(func() { gooseMigrator = orig })
	gooseMigrator = migrator{
		up:      record("up"),
		upByOne: record("up-by-one"),
		upTo:    recordTo("up-to"),
		down:    record("down"),
		downTo:  recordTo("down-to"),
		redo:    record("redo"),
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: admin migrate up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: admin migrate down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}, extra: "up migrations"},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}, extra: "up-by-one migrations"},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}, extra: "up-to migrations 2"},
		{name: "down", args: []string{"migrate", "down"}, extra: "down migrations"},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}, extra: "down-to migrations 1"},
		{name: "redo", args: []string{"migrate", "redo"}, extra: "redo migrations"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			tt.check(t, cli.run(args))
			if want, ok := tt.extra.(string); ok {
				assert.Equal(t, []string{want}, calls)
			} else {
				assert.Empty(t, calls)
			}
		})
	}
}

func Test_commandLine_token(t *testing.T) {
	cli, out, _ := setup(t)

	tests := []cliTest{
		{name: "no role", args: []string{"token", "-username", "tom"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"token", "-username", "tom", "-role", "lol"}, wantErrStr: `unknown role "lol"`},
		{name: "student without index", args: []string{"token", "-username", "awe", "-role", "student"}, wantErrStr: `students need a valid index (got "")`},
		{
			name:  "teacher",
			args:  []string{"token", "-username", "Tom", "-role", "Teacher", "-email", "tom@test.cd"},
			extra: echoapi.Claims{Username: "tom", Email: "tom@test.cd", Roles: []string{echoapi.RoleTeacher}},
		},
		{
			name:  "student",
			args:  []string{"token", "-username", "awe", "-role", "student", "-index", "A000001"},
			extra: echoapi.Claims{Username: "awe", StudentIndex: "A000001", Roles: []string{echoapi.RoleStudent}},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			tt.check(t, err)

			want, ok := tt.extra.(echoapi.Claims)
			if !ok || err != nil {
				return
			}
			claims := new(echoapi.Claims)
			_, err = jwt.ParseWithClaims(string(bytes.TrimSpace(out.Bytes())), claims, func(*jwt.Token) (interface{}, error) {
				return []byte(cli.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, want.Username, claims.Username)
			assert.Equal(t, want.Username, claims.Subject)
			assert.Equal(t, want.Email, claims.Email)
			assert.Equal(t, want.StudentIndex, claims.StudentIndex)
			assert.Equal(t, want.Roles, claims.Roles)
		})
	}
}

func Test_commandLine_upload(t *testing.T) {
	cli, out, fx := setup(t)
	ctx := context.Background()
	class := strconv.Itoa(fx.MA201.ClassID)

	dir := t.TempDir()
	valid := filepath.Join(dir, "results.xlsx")
	require.NoError(t, os.WriteFile(valid, testutil.ResultsXLSX(t,
		result.Record{Index: "B000002", Mark: 60},
		result.Record{Index: "A000001", Mark: 50},
	), 0o600))
	invalid := filepath.Join(dir, "invalid.csv")
	require.NoError(t, os.WriteFile(invalid, []byte("index,mark\nA000001,lol\n"), 0o600))

	tests := []cliTest{
		{name: "invalid date", args: []string{"upload", "-class", class, "-date", "01/07/2021", "-file", valid}, wantErrStr: `invalid date "01/07/2021": expected YYYY-MM-DD`},
		{name: "missing file", args: []string{"upload", "-class", class, "-date", "2021-07-01", "-file", filepath.Join(dir, "lol.xlsx")}, wantErrStr: "opening file: open " + filepath.Join(dir, "lol.xlsx") + ": no such file or directory"},
		{name: "invalid file", args: []string{"upload", "-class", class, "-date", "2021-07-01", "-file", invalid}, wantErrStr: "row 1: mark must be a number between 0 and 100"},
		{name: "unknown class", args: []string{"upload", "-class", "999", "-date", "2021-07-01", "-file", valid, "-yes"}, wantErrStr: "invalid form: map[class_id:class not found]"},
		{name: "not confirmed", args: []string{"upload", "-class", class, "-date", "2021-07-01", "-file", valid}, wantErr: exam.ErrNotConfirmed},
		{name: "confirmed on the terminal", args: []string{"upload", "-class", class, "-date", "2021-07-01", "-file", valid}, extra: "y\n"},
		{name: "confirmed with -yes", args: []string{"upload", "-class", class, "-date", "2021-07-02", "-type", "quiz", "-file", valid, "-yes"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if answer, ok := tt.extra.(string); ok {
				isTerminalFunc = func(int) bool { return true }
				readLineFunc = func() (string, error) { return answer, nil }
				t.Cleanup(func() { isTerminalFunc = func(int) bool { return false } })
			}

			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				assert.Contains(t, out.String(), "2 result(s) read: mean 55.00")
				assert.Contains(t, out.String(), "created")
			}
		})
	}

	exams, err := cli.examSvc.Exams(ctx, fx.MA201.ClassID)
	require.NoError(t, err)
	require.Len(t, exams, 3)
	assert.Equal(t, exam.TypeQuiz, exams[0].Type)
	assert.Equal(t, testutil.Date(2021, 7, 2), exams[0].DateHeld)
	assert.Equal(t, exam.TypeExam, exams[1].Type)
}

func Test_commandLine_view(t *testing.T) {
	cli, out, fx := setup(t)
	examID := strconv.Itoa(fx.CS101Test.ExamID)

	require.NoError(t, cli.run([]string{"admin", "view", "-exam", examID, "-ordering", "-mark"}))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 8)
	assert.Contains(t, string(lines[0]), "test held on 1 Mar 2021")
	assert.Contains(t, string(lines[3]), "B000002  Bea King")
	assert.Contains(t, string(lines[5]), "A000001  Awe Mbuyi")
	assert.Equal(t, "count 3, mean 55.00, median 55.00, std dev 12.25, min 40, max 70", string(lines[7]))

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "view", "-exam", examID, "-search", "hero"}))
	assert.Contains(t, out.String(), "C000003")
	assert.NotContains(t, out.String(), "A000001")

	assert.Equal(t, exam.ErrExamNotFound, errors.Cause(cli.run([]string{"admin", "view", "-exam", "999"})))
}

func Test_commandLine_edit(t *testing.T) {
	cli, out, fx := setup(t)
	ctx := context.Background()
	examID := strconv.Itoa(fx.CS101Test.ExamID)

	tests := []cliTest{
		{name: "unknown exam", args: []string{"edit", "-exam", "999", "-set", "A000001=1"}, wantErr: exam.ErrExamNotFound},
		{name: "unknown index", args: []string{"edit", "-exam", examID, "-set", "Z999999=1"}, wantErrStr: `Z999999: invalid mark "1": no such index`},
		{name: "invalid mark", args: []string{"edit", "-exam", examID, "-set", "A000001=abc"}, wantErrStr: `A000001: invalid mark "abc": not a whole number`},
		{name: "no changes", args: []string{"edit", "-exam", examID, "-set", "A000001=40"}, extra: "no changes"},
		{name: "pending", args: []string{"edit", "-exam", examID, "-set", "A000001=", "-yes"}, wantErrStr: "some marks are missing: A000001"},
		{name: "not confirmed", args: []string{"edit", "-exam", examID, "-set", "B000002=85"}, wantErr: exam.ErrNotConfirmed},
		{name: "confirmed", args: []string{"edit", "-exam", examID, "-set", "B000002=85", "-set", "C000003=60", "-yes"}, extra: "2 change(s) saved"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(args))
			if want, ok := tt.extra.(string); ok {
				assert.Contains(t, out.String(), want)
			}
		})
	}

	assert.Contains(t, out.String(), "-B000002\t70\n")
	assert.Contains(t, out.String(), "+B000002\t85\n")
	results, err := cli.examSvc.Results(ctx, fx.CS101Test.ExamID, exam.ResultsFilter{})
	require.NoError(t, err)
	marks := make([]int, len(results))
	for i, r := range results {
		marks[i] = r.Mark
	}
	assert.Equal(t, []int{40, 85, 60}, marks)
}

func Test_commandLine_delete(t *testing.T) {
	cli, out, fx := setup(t)
	examID := strconv.Itoa(fx.CS101Test.ExamID)

	tests := []cliTest{
		{name: "not confirmed", args: []string{"delete", "-exam", examID}, wantErr: exam.ErrNotConfirmed},
		{name: "declined on the terminal", args: []string{"delete", "-exam", examID}, wantErr: exam.ErrNotConfirmed, extra: "n\n"},
		{name: "confirmed", args: []string{"delete", "-exam", examID, "-yes"}, extra: "exam " + examID + " deleted\n"},
		{name: "deleted", args: []string{"delete", "-exam", examID, "-yes"}, wantErr: exam.ErrExamNotFound},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			answer, _ := tt.extra.(string)
			if tt.wantErr != nil && answer != "" {
				isTerminalFunc = func(int) bool { return true }
				readLineFunc = func() (string, error) { return answer, nil }
				t.Cleanup(func() { isTerminalFunc = func(int) bool { return false } })
			}
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				assert.Equal(t, answer, out.String())
			} else if answer != "" {
				assert.Equal(t, "delete exam "+examID+" and all its results? [y/N] ", out.String())
			}
		})
	}
}
