package exam

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-results/core/result"
)

// Exam types
const (
	TypeExam       = "exam"
	TypeTest       = "test"
	TypeAssignment = "assignment"
	TypeQuiz       = "quiz"
)

var Types = []string{TypeExam, TypeTest, TypeAssignment, TypeQuiz}

// Class is a module taught to a year group.
type Class struct {
	ClassID    int    `json:"class_id" db:"id"`
	ModuleCode string `json:"module_code" db:"module_code"`
	ModuleName string `json:"module_name" db:"module_name"`
	Year       int    `json:"year" db:"year"`
}

type Exam struct {
	ExamID     int       `json:"exam_id" db:"id"`
	ClassID    int       `json:"class_id" db:"class_id"`
	Type       string    `json:"type" db:"type"`
	DateHeld   time.Time `json:"date_held" db:"date_held"`
	Allocation null.Int  `json:"allocation" db:"allocation"` // share of the final grade (%), if any
	HideMarks  bool      `json:"hide_marks" db:"hide_marks"` // hidden from students
}

// StudentResult is a row of an exam's results.
type StudentResult struct {
	StudentIndex string `json:"student_index" db:"student_index"`
	StudentName  string `json:"student_name" db:"student_name"`
	Year         int    `json:"year" db:"year"`
	Mark         int    `json:"mark" db:"mark"`
}

// StudentMark is a student's mark for one exam.
type StudentMark struct {
	ClassID  int       `json:"class_id" db:"class_id"`
	ExamID   int       `json:"exam_id" db:"exam_id"`
	ExamType string    `json:"exam_type" db:"exam_type"`
	DateHeld time.Time `json:"date_held" db:"date_held"`
	Mark     int       `json:"mark" db:"mark"`
}

// ClassResults groups a student's marks of a class.
type ClassResults struct {
	Class
	Marks   []StudentMark `json:"marks"`
	Average float64       `json:"average"`
}

// Summary describes the distribution of an exam's marks.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// NewExamResults contains the information needed to record the results of a new exam.
type NewExamResults struct {
	ClassID    int        `json:"class_id" validate:"required"`
	ExamType   string     `json:"exam_type" validate:"omitempty,examtype"`
	ExamDate   time.Time  `json:"exam_date" validate:"required,notfuture"`
	Allocation null.Int   `json:"allocation"`
	Results    result.Set `json:"results" validate:"required,min=1,unique=Index,dive"`
}

// ResultsFilter narrows & orders the results of an exam.
type ResultsFilter struct {
	Search   string // case-insensitive match on the student's index or name
	Ordering string // eg: "-mark,student_name"
}

// notification is the data of the results_saved email template.
type notification struct {
	Action     string
	Count      int
	Mean       float64
	ExamType   string
	DateHeld   time.Time
	ModuleCode string
	ModuleName string
}
