// Package result implements the spreadsheet ingestion pipeline of exam results:
// Read -> Validate -> Normalize -> Stager.
package result

import "sort"

// Column names a results spreadsheet must expose.
const (
	IndexColumn = "index"
	MarkColumn  = "mark"
)

// Mark bounds (inclusive).
const (
	MinMark = 0
	MaxMark = 100
)

// RawRow maps a column name to the text of its cell. Empty cells are absent.
type RawRow map[string]string

// Record is a student's mark for an exam.
type Record struct {
	Index string `json:"index" validate:"studentindex"`
	Mark  int    `json:"mark" validate:"min=0,max=100"`
}

// Set is a list of records sorted by Index, without duplicate indexes.
type Set []Record

// NewSet returns a sorted copy of records.
func NewSet(records ...Record) Set {
	set := make(Set, len(records))
	copy(set, records)
	set.sort()
	return set
}

// Clone returns a copy of s that shares no memory with it.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	c := make(Set, len(s))
	copy(c, s)
	return c
}

// Find returns the position of index in s (binary search; s must be sorted).
func (s Set) Find(index string) (int, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Index >= index })
	return i, i < len(s) && s[i].Index == index
}

// Marks returns the marks of s in order.
func (s Set) Marks() []int {
	marks := make([]int, len(s))
	for i, r := range s {
		marks[i] = r.Mark
	}
	return marks
}

func (s Set) sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Index < s[j].Index })
}
