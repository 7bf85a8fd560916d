package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) QueryClasses(_ context.Context) ([]exam.Class, error) {
	repo.db.class.RLock()
	defer repo.db.class.RUnlock()

	classes := make([]exam.Class, 0, len(repo.db.class.table))
	for _, c := range repo.db.class.table {
		classes = append(classes, *c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Year != classes[j].Year {
			return classes[i].Year < classes[j].Year
		}
		return classes[i].ModuleCode < classes[j].ModuleCode
	})
	return classes, nil
}

func (repo *examRepository) QueryExams(_ context.Context, classID int) ([]exam.Exam, error) {
	repo.db.exam.RLock()
	defer repo.db.exam.RUnlock()

	exams := make([]exam.Exam, 0)
	for _, e := range repo.db.exam.table {
		if e.ClassID == classID {
			exams = append(exams, *e)
		}
	}
	sort.Slice(exams, func(i, j int) bool {
		if !exams[i].DateHeld.Equal(exams[j].DateHeld) {
			return exams[i].DateHeld.After(exams[j].DateHeld)
		}
		return exams[i].ExamID > exams[j].ExamID
	})
	return exams, nil
}

func (repo *examRepository) GetExam(_ context.Context, examID int) (exam.Exam, error) {
	repo.db.exam.RLock()
	defer repo.db.exam.RUnlock()

	if e, ok := repo.db.exam.table[examID]; ok {
		return *e, nil
	}
	return exam.Exam{}, exam.ErrExamNotFound
}

func (repo *examRepository) QueryResults(ctx context.Context, examID int) ([]exam.StudentResult, error) {
	if _, err := repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}

	repo.db.result.RLock()
	defer repo.db.result.RUnlock()
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()

	marks := repo.db.result.table[examID]
	results := make([]exam.StudentResult, 0, len(marks))
	for index, mark := range marks {
		r := exam.StudentResult{StudentIndex: index, Mark: mark}
		if s, ok := repo.db.student.table[index]; ok {
			r.StudentName = s.Name
			r.Year = s.Year
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StudentIndex < results[j].StudentIndex })
	return results, nil
}

func (repo *examRepository) CreateExamResults(_ context.Context, ner exam.NewExamResults) (exam.Exam, error) {
	repo.db.class.RLock()
	class, ok := repo.db.class.table[ner.ClassID]
	repo.db.class.RUnlock()
	if !ok {
		return exam.Exam{}, exam.ErrClassNotFound
	}

	repo.db.exam.Lock()
	repo.db.exam.pk++
	ex := exam.Exam{
		ExamID:     repo.db.exam.pk,
		ClassID:    ner.ClassID,
		Type:       ner.ExamType,
		DateHeld:   ner.ExamDate,
		Allocation: ner.Allocation,
	}
	repo.db.exam.table[ex.ExamID] = &ex
	repo.db.exam.Unlock()

	repo.ensureStudents(ner.Results, class.Year)
	repo.setMarks(ex.ExamID, ner.Results)
	return ex, nil
}

func (repo *examRepository) UpdateResults(ctx context.Context, examID int, set result.Set) error {
	ex, err := repo.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	repo.db.class.RLock()
	var year int
	if c, ok := repo.db.class.table[ex.ClassID]; ok {
		year = c.Year
	}
	repo.db.class.RUnlock()

	repo.ensureStudents(set, year)
	repo.setMarks(examID, set)
	return nil
}

func (repo *examRepository) DeleteExam(_ context.Context, examID int) error {
	repo.db.exam.Lock()
	defer repo.db.exam.Unlock()

	if _, ok := repo.db.exam.table[examID]; !ok {
		return exam.ErrExamNotFound
	}
	delete(repo.db.exam.table, examID)

	repo.db.result.Lock()
	delete(repo.db.result.table, examID)
	repo.db.result.Unlock()
	return nil
}

func (repo *examRepository) QueryStudentMarks(_ context.Context, studentIndex string) ([]exam.StudentMark, error) {
	repo.db.exam.RLock()
	defer repo.db.exam.RUnlock()
	repo.db.result.RLock()
	defer repo.db.result.RUnlock()

	marks := make([]exam.StudentMark, 0)
	for examID, results := range repo.db.result.table {
		mark, ok := results[studentIndex]
		if !ok {
			continue
		}
		ex, ok := repo.db.exam.table[examID]
		if !ok || ex.HideMarks {
			continue
		}
		marks = append(marks, exam.StudentMark{
			ClassID:  ex.ClassID,
			ExamID:   ex.ExamID,
			ExamType: ex.Type,
			DateHeld: ex.DateHeld,
			Mark:     mark,
		})
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].ExamID < marks[j].ExamID })
	return marks, nil
}

// ensureStudents registers the students of set that are not known yet.
func (repo *examRepository) ensureStudents(set result.Set, year int) {
	repo.db.student.Lock()
	defer repo.db.student.Unlock()

	for _, r := range set {
		if _, ok := repo.db.student.table[r.Index]; !ok {
			repo.db.student.table[r.Index] = &Student{Index: r.Index, Year: year}
		}
	}
}

func (repo *examRepository) setMarks(examID int, set result.Set) {
	repo.db.result.Lock()
	defer repo.db.result.Unlock()

	marks := make(map[string]int, len(set))
	for _, r := range set {
		marks[r.Index] = r.Mark
	}
	repo.db.result.table[examID] = marks
}

// HideMarks toggles whether students can see the marks of an exam.
func (db *DB) HideMarks(examID int, hide bool) error {
	db.exam.Lock()
	defer db.exam.Unlock()

	e, ok := db.exam.table[examID]
	if !ok {
		return exam.ErrExamNotFound
	}
	e.HideMarks = hide
	return nil
}
