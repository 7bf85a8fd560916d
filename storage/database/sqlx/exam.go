package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

const (
	queryClasses = `SELECT id, module_code, module_name, year FROM "class" ORDER BY year, module_code`

	queryExams = `SELECT id, class_id, type, date_held, allocation, hide_marks
		FROM "exam" WHERE class_id = $1 ORDER BY date_held DESC, id DESC`

	getExam = `SELECT id, class_id, type, date_held, allocation, hide_marks FROM "exam" WHERE id = $1`

	queryResults = `SELECT r.student_index, s.name AS student_name, s.year, r.mark
		FROM "result" r JOIN "student" s ON s."index" = r.student_index
		WHERE r.exam_id = $1 ORDER BY r.student_index`

	queryStudentMarks = `SELECT e.class_id, e.id AS exam_id, e.type AS exam_type, e.date_held, r.mark
		FROM "result" r JOIN "exam" e ON e.id = r.exam_id
		WHERE r.student_index = $1 AND NOT e.hide_marks ORDER BY e.date_held, e.id`

	getClassYear = `SELECT year FROM "class" WHERE id = $1`

	insertExam = `INSERT INTO "exam" (class_id, type, date_held, allocation)
		VALUES ($1, $2, $3, $4) RETURNING id, class_id, type, date_held, allocation, hide_marks`

	lockExam = `SELECT e.class_id, c.year FROM "exam" e JOIN "class" c ON c.id = e.class_id WHERE e.id = $1 FOR UPDATE OF e`

	insertStudent = `INSERT INTO "student" ("index", year) VALUES ($1, $2) ON CONFLICT ("index") DO NOTHING`

	deleteResults = `DELETE FROM "result" WHERE exam_id = $1`

	insertResult = `INSERT INTO "result" (exam_id, student_index, mark) VALUES ($1, $2, $3)`

	deleteExam = `DELETE FROM "exam" WHERE id = $1`
)

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) QueryClasses(ctx context.Context) ([]exam.Class, error) {
	classes := make([]exam.Class, 0)
	if err := repo.db.SelectContext(ctx, &classes, queryClasses); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	return classes, nil
}

func (repo *examRepository) QueryExams(ctx context.Context, classID int) ([]exam.Exam, error) {
	exams := make([]exam.Exam, 0)
	if err := repo.db.SelectContext(ctx, &exams, queryExams, classID); err != nil {
		return nil, errors.Wrap(err, "selecting exams")
	}
	return exams, nil
}

func (repo *examRepository) GetExam(ctx context.Context, examID int) (exam.Exam, error) {
	var ex exam.Exam
	if err := repo.db.GetContext(ctx, &ex, getExam, examID); err != nil {
		if err == sql.ErrNoRows {
			return exam.Exam{}, exam.ErrExamNotFound
		}
		return exam.Exam{}, errors.Wrap(err, "selecting exam")
	}
	return ex, nil
}

func (repo *examRepository) QueryResults(ctx context.Context, examID int) ([]exam.StudentResult, error) {
	if _, err := repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	results := make([]exam.StudentResult, 0)
	if err := repo.db.SelectContext(ctx, &results, queryResults, examID); err != nil {
		return nil, errors.Wrap(err, "selecting results")
	}
	return results, nil
}

func (repo *examRepository) CreateExamResults(ctx context.Context, ner exam.NewExamResults) (exam.Exam, error) {
	var ex exam.Exam
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		var year int
		if err := tx.GetContext(ctx, &year, getClassYear, ner.ClassID); err != nil {
			if err == sql.ErrNoRows {
				return exam.ErrClassNotFound
			}
			return errors.Wrap(err, "selecting class")
		}

		err := tx.QueryRowxContext(ctx, insertExam, ner.ClassID, ner.ExamType, ner.ExamDate, ner.Allocation).StructScan(&ex)
		if err != nil {
			return errors.Wrap(err, "inserting exam")
		}
		return insertResults(ctx, tx, ex.ExamID, year, ner.Results)
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return ex, nil
}

func (repo *examRepository) UpdateResults(ctx context.Context, examID int, set result.Set) error {
	return repo.withTx(ctx, func(tx *sqlx.Tx) error {
		var locked struct {
			ClassID int `db:"class_id"`
			Year    int `db:"year"`
		}
		if err := tx.GetContext(ctx, &locked, lockExam, examID); err != nil {
			if err == sql.ErrNoRows {
				return exam.ErrExamNotFound
			}
			return errors.Wrap(err, "locking exam")
		}
		if _, err := tx.ExecContext(ctx, deleteResults, examID); err != nil {
			return errors.Wrap(err, "deleting results")
		}
		return insertResults(ctx, tx, examID, locked.Year, set)
	})
}

func (repo *examRepository) DeleteExam(ctx context.Context, examID int) error {
	res, err := repo.db.ExecContext(ctx, deleteExam, examID)
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exam.ErrExamNotFound
	}
	return nil
}

func (repo *examRepository) QueryStudentMarks(ctx context.Context, studentIndex string) ([]exam.StudentMark, error) {
	marks := make([]exam.StudentMark, 0)
	if err := repo.db.SelectContext(ctx, &marks, queryStudentMarks, studentIndex); err != nil {
		return nil, errors.Wrap(err, "selecting student marks")
	}
	return marks, nil
}

// withTx runs fn in a transaction, committed only if fn succeeds.
func (repo *examRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// insertResults registers unknown students then inserts the results of set.
func insertResults(ctx context.Context, tx *sqlx.Tx, examID, year int, set result.Set) error {
	stdStmt, err := tx.PreparexContext(ctx, insertStudent)
	if err != nil {
		return errors.Wrap(err, "preparing student insert")
	}
	defer func() { _ = stdStmt.Close() }()

	resStmt, err := tx.PreparexContext(ctx, insertResult)
	if err != nil {
		return errors.Wrap(err, "preparing result insert")
	}
	defer func() { _ = resStmt.Close() }()

	for _, r := range set {
		if _, err = stdStmt.ExecContext(ctx, r.Index, year); err != nil {
			return errors.Wrapf(err, "inserting student %s", r.Index)
		}
		if _, err = resStmt.ExecContext(ctx, examID, r.Index, r.Mark); err != nil {
			return errors.Wrapf(err, "inserting result of %s", r.Index)
		}
	}
	return nil
}
