package testutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/masomo-results/apps/bootstrap"
	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
	logsvc "github.com/trezcool/masomo-results/services/logger"
	"github.com/trezcool/masomo-results/storage/database"
	"github.com/trezcool/masomo-results/storage/database/dummy"
)

// Config returns the configuration used by tests.
func Config() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Cache.TTL = time.Minute
	conf.Cache.ReviewTTL = time.Minute
	conf.Upload.MaxSize = 1 << 20
	return conf
}

// Logger returns a silent logger.
func Logger(conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with all the app's validation tags registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	return bootstrap.NewValidator()
}

// Sheet is a worksheet of an xlsx fixture; the first row is the header.
type Sheet struct {
	Name string
	Rows [][]interface{}
}

// XLSX builds an xlsx workbook holding sheets, in order.
func XLSX(t *testing.T, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				t.Fatalf("XLSX() failed: %v", err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			t.Fatalf("XLSX() failed: %v", err)
		}
		for r, row := range sheet.Rows {
			row := row
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
				t.Fatalf("XLSX() failed: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("XLSX() failed: %v", err)
	}
	return buf.Bytes()
}

// ResultsXLSX builds a single sheet workbook with the index & mark columns.
func ResultsXLSX(t *testing.T, records ...result.Record) []byte {
	rows := [][]interface{}{{"index", "mark"}}
	for _, r := range records {
		rows = append(rows, []interface{}{r.Index, r.Mark})
	}
	return XLSX(t, Sheet{Name: "Sheet1", Rows: rows})
}

// Fixtures are the records created by SeedDB.
type Fixtures struct {
	CS101, MA201       exam.Class
	CS101Test          exam.Exam // A000001: 40, B000002: 70, C000003: 55
	CS101Exam          exam.Exam // A000001: 85, B000002: 62
	MA201Exam          exam.Exam // A000001: 90 - hidden from students
	Awe, Bea, Cid      dummydb.Student
	CS101TestResults   result.Set
	CS101ExamResults   result.Set
	MA201ExamResults   result.Set
	StudentIndexes     []string
	AllExamsOfCS101IDs []int
}

// OpenDummyDB returns a seeded in-memory database.
func OpenDummyDB(t *testing.T) (*dummydb.DB, exam.Repository, Fixtures) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewExamRepository(db)
	return db, repo, SeedDB(t, db, repo)
}

// SeedDB creates two classes, three students & three exams.
func SeedDB(t *testing.T, db *dummydb.DB, repo exam.Repository) Fixtures {
	t.Helper()
	ctx := context.Background()

	fx := Fixtures{
		CS101: db.AddClass(exam.Class{ModuleCode: "CS101", ModuleName: "Introduction to Programming", Year: 1}),
		MA201: db.AddClass(exam.Class{ModuleCode: "MA201", ModuleName: "Linear Algebra", Year: 2}),
		Awe:   dummydb.Student{Index: "A000001", Name: "Awe Mbuyi", Year: 1},
		Bea:   dummydb.Student{Index: "B000002", Name: "Bea King", Year: 1},
		Cid:   dummydb.Student{Index: "C000003", Name: "Cid Hero", Year: 2},

		CS101TestResults: result.Set{{Index: "A000001", Mark: 40}, {Index: "B000002", Mark: 70}, {Index: "C000003", Mark: 55}},
		CS101ExamResults: result.Set{{Index: "A000001", Mark: 85}, {Index: "B000002", Mark: 62}},
		MA201ExamResults: result.Set{{Index: "A000001", Mark: 90}},
	}
	for _, s := range []dummydb.Student{fx.Awe, fx.Bea, fx.Cid} {
		db.AddStudent(s)
		fx.StudentIndexes = append(fx.StudentIndexes, s.Index)
	}

	create := func(class exam.Class, typ string, date time.Time, set result.Set) exam.Exam {
		ex, err := repo.CreateExamResults(ctx, exam.NewExamResults{
			ClassID:  class.ClassID,
			ExamType: typ,
			ExamDate: date,
			Results:  set.Clone(),
		})
		if err != nil {
			t.Fatalf("SeedDB() failed: %v", err)
		}
		return ex
	}
	fx.CS101Test = create(fx.CS101, exam.TypeTest, Date(2021, 3, 1), fx.CS101TestResults)
	fx.CS101Exam = create(fx.CS101, exam.TypeExam, Date(2021, 6, 1), fx.CS101ExamResults)
	fx.MA201Exam = create(fx.MA201, exam.TypeExam, Date(2021, 6, 10), fx.MA201ExamResults)
	if err := db.HideMarks(fx.MA201Exam.ExamID, true); err != nil {
		t.Fatalf("SeedDB() failed: %v", err)
	}
	fx.MA201Exam.HideMarks = true
	fx.AllExamsOfCS101IDs = []int{fx.CS101Exam.ExamID, fx.CS101Test.ExamID}
	return fx
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// PrepareDB connects to the test database and empties it.
// Tests are skipped unless the database backend is configured, eg: `TEST_BACKEND=database`.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := Config()
	if conf.Backend != core.BackendDatabase {
		t.Skip("database backend not configured")
	}

	db, err := database.Setup(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ResetDB(t, db)
	return db
}

// ResetDB empties all tables.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	for _, table := range []string{"result", "student", "exam", "class"} {
		if _, err := db.Exec(fmt.Sprintf(`TRUNCATE TABLE %q RESTART IDENTITY CASCADE`, table)); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}
