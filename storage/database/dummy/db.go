package dummydb

import (
	"sync"

	"github.com/trezcool/masomo-results/core/exam"
)

type (
	// DB is an in-memory data service, for local development & tests.
	DB struct {
		class   *classTable
		exam    *examTable
		student *studentTable
		result  *resultTable
	}

	Student struct {
		Index string
		Name  string
		Year  int
	}

	classTable struct {
		sync.RWMutex
		pk    int
		table map[int]*exam.Class
	}

	examTable struct {
		sync.RWMutex
		pk    int
		table map[int]*exam.Exam
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*Student
	}

	resultTable struct {
		sync.RWMutex
		table map[int]map[string]int // {examID: {studentIndex: mark}}
	}
)

func Open() (*DB, error) {
	db := &DB{
		class:   &classTable{table: make(map[int]*exam.Class)},
		exam:    &examTable{table: make(map[int]*exam.Exam)},
		student: &studentTable{table: make(map[string]*Student)},
		result:  &resultTable{table: make(map[int]map[string]int)},
	}
	return db, nil
}

// AddClass stores c, assigning it an ID if it has none.
func (db *DB) AddClass(c exam.Class) exam.Class {
	db.class.Lock()
	defer db.class.Unlock()

	if c.ClassID == 0 {
		db.class.pk++
		c.ClassID = db.class.pk
	} else if c.ClassID > db.class.pk {
		db.class.pk = c.ClassID
	}
	db.class.table[c.ClassID] = &c
	return c
}

func (db *DB) AddStudent(s Student) {
	db.student.Lock()
	defer db.student.Unlock()
	db.student.table[s.Index] = &s
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.class.Lock()
	db.class.pk = 0
	db.class.table = make(map[int]*exam.Class)
	db.class.Unlock()

	db.exam.Lock()
	db.exam.pk = 0
	db.exam.table = make(map[int]*exam.Exam)
	db.exam.Unlock()

	db.student.Lock()
	db.student.table = make(map[string]*Student)
	db.student.Unlock()

	db.result.Lock()
	db.result.table = make(map[int]map[string]int)
	db.result.Unlock()
}

// SeedDemo adds a few classes to play with.
func (db *DB) SeedDemo() {
	for _, c := range []exam.Class{
		{ModuleCode: "CS101", ModuleName: "Introduction to Programming", Year: 1},
		{ModuleCode: "MA101", ModuleName: "Calculus I", Year: 1},
		{ModuleCode: "CS201", ModuleName: "Data Structures", Year: 2},
		{ModuleCode: "MA201", ModuleName: "Linear Algebra", Year: 2},
	} {
		db.AddClass(c)
	}
}
