package dummydb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
	testutil "github.com/trezcool/masomo-results/tests"
)

func TestExamRepository(t *testing.T) {
	db, repo, fx := testutil.OpenDummyDB(t)
	ctx := context.Background()

	t.Run("results carry student details", func(t *testing.T) {
		results, err := repo.QueryResults(ctx, fx.CS101Test.ExamID)
		require.NoError(t, err)
		assert.Equal(t, []exam.StudentResult{
			{StudentIndex: "A000001", StudentName: "Awe Mbuyi", Year: 1, Mark: 40},
			{StudentIndex: "B000002", StudentName: "Bea King", Year: 1, Mark: 70},
			{StudentIndex: "C000003", StudentName: "Cid Hero", Year: 2, Mark: 55},
		}, results)
	})

	t.Run("unknown students registered with the class year", func(t *testing.T) {
		set := result.Set{{Index: "A000001", Mark: 12}, {Index: "E000005", Mark: 34}}
		require.NoError(t, repo.UpdateResults(ctx, fx.MA201Exam.ExamID, set))

		results, err := repo.QueryResults(ctx, fx.MA201Exam.ExamID)
		require.NoError(t, err)
		assert.Equal(t, []exam.StudentResult{
			{StudentIndex: "A000001", StudentName: "Awe Mbuyi", Year: 1, Mark: 12},
			{StudentIndex: "E000005", Year: fx.MA201.Year, Mark: 34},
		}, results)
	})

	t.Run("hidden marks", func(t *testing.T) {
		marks, err := repo.QueryStudentMarks(ctx, "A000001")
		require.NoError(t, err)
		assert.Len(t, marks, 2)

		require.NoError(t, db.HideMarks(fx.MA201Exam.ExamID, false))
		marks, err = repo.QueryStudentMarks(ctx, "A000001")
		require.NoError(t, err)
		assert.Len(t, marks, 3)

		assert.Equal(t, exam.ErrExamNotFound, db.HideMarks(999, true))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetExam(ctx, 999)
		assert.Equal(t, exam.ErrExamNotFound, err)
		_, err = repo.QueryResults(ctx, 999)
		assert.Equal(t, exam.ErrExamNotFound, err)
		assert.Equal(t, exam.ErrExamNotFound, repo.UpdateResults(ctx, 999, nil))
		assert.Equal(t, exam.ErrExamNotFound, repo.DeleteExam(ctx, 999))
		_, err = repo.CreateExamResults(ctx, exam.NewExamResults{ClassID: 999})
		assert.Equal(t, exam.ErrClassNotFound, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteExam(ctx, fx.CS101Test.ExamID))
		exams, err := repo.QueryExams(ctx, fx.CS101.ClassID)
		require.NoError(t, err)
		assert.Equal(t, []exam.Exam{fx.CS101Exam}, exams)

		marks, err := repo.QueryStudentMarks(ctx, "C000003")
		require.NoError(t, err)
		assert.Empty(t, marks)
	})

	t.Run("reset", func(t *testing.T) {
		db.Reset()
		classes, err := repo.QueryClasses(ctx)
		require.NoError(t, err)
		assert.Empty(t, classes)
		assert.Equal(t, 1, db.AddClass(exam.Class{ModuleCode: "CS101"}).ClassID)
	})
}
