package result

import (
	"sort"
	"strconv"
	"strings"
)

// Change is a row of the working copy whose mark differs from the baseline.
type Change struct {
	Index string `json:"index"`
	Old   int    `json:"old"`
	New   int    `json:"new"`
}

// Stager holds a baseline Set (as last persisted or fetched) and a working copy the user edits.
// The working copy never shares memory with the baseline.
// A Stager is not safe for concurrent use.
type Stager struct {
	baseline Set
	working  Set
	pending  map[string]bool // rows whose edit was left empty
}

func NewStager() *Stager {
	return &Stager{pending: make(map[string]bool)}
}

// Load replaces any staged results: baseline and working copy both become copies of set.
func (s *Stager) Load(set Set) {
	s.baseline = set.Clone()
	s.working = set.Clone()
	s.clearPending()
}

// ApplyEdit sets the working copy's mark of index to rawValue.
// An empty rawValue only flags the row as pending; the working copy is left as is.
// A rawValue that is not a whole number between MinMark and MaxMark, or an unknown index,
// returns an *EditError and leaves the working copy unchanged.
func (s *Stager) ApplyEdit(index, rawValue string) error {
	i, ok := s.working.Find(index)
	if !ok {
		return &EditError{Index: index, RawValue: rawValue, Reason: "no such index"}
	}
	if rawValue == "" {
		s.pending[index] = true
		return nil
	}

	mark, err := strconv.Atoi(strings.TrimSpace(rawValue))
	if err != nil {
		return &EditError{Index: index, RawValue: rawValue, Reason: "not a whole number"}
	}
	if mark < MinMark || mark > MaxMark {
		return &EditError{Index: index, RawValue: rawValue, Reason: "must be between 0 and 100"}
	}
	s.working[i].Mark = mark
	delete(s.pending, index)
	return nil
}

// Filter returns the rows of the working copy whose index contains pattern, ignoring case.
// Order is preserved and an empty pattern returns the whole working copy.
func (s *Stager) Filter(pattern string) Set {
	if pattern == "" {
		return s.working.Clone()
	}
	pattern = strings.ToLower(pattern)
	view := make(Set, 0, len(s.working))
	for _, r := range s.working {
		if strings.Contains(strings.ToLower(r.Index), pattern) {
			view = append(view, r)
		}
	}
	return view
}

// Commit makes the working copy the new baseline. Call it once persistence has succeeded.
func (s *Stager) Commit() {
	s.baseline = s.working.Clone()
	s.clearPending()
}

// Discard resets the working copy to the baseline.
func (s *Stager) Discard() {
	s.working = s.baseline.Clone()
	s.clearPending()
}

// Reset drops all staged results.
func (s *Stager) Reset() {
	s.baseline = nil
	s.working = nil
	s.clearPending()
}

func (s *Stager) Baseline() Set { return s.baseline.Clone() }
func (s *Stager) Working() Set  { return s.working.Clone() }
func (s *Stager) Len() int      { return len(s.working) }

// Changed reports whether the mark of index differs between the working copy and the baseline.
func (s *Stager) Changed(index string) bool {
	i, ok := s.working.Find(index)
	if !ok {
		return false
	}
	j, ok := s.baseline.Find(index)
	return !ok || s.baseline[j].Mark != s.working[i].Mark
}

// Changes lists the changed rows, sorted by index.
func (s *Stager) Changes() []Change {
	var changes []Change
	for _, r := range s.working {
		if j, ok := s.baseline.Find(r.Index); ok && s.baseline[j].Mark != r.Mark {
			changes = append(changes, Change{Index: r.Index, Old: s.baseline[j].Mark, New: r.Mark})
		}
	}
	return changes
}

// Dirty reports whether there are unsaved changes or pending rows.
func (s *Stager) Dirty() bool {
	return len(s.pending) > 0 || len(s.Changes()) > 0
}

// Pending lists the rows flagged by an empty edit, sorted.
func (s *Stager) Pending() []string {
	pending := make([]string, 0, len(s.pending))
	for index := range s.pending {
		pending = append(pending, index)
	}
	sort.Strings(pending)
	return pending
}

func (s *Stager) clearPending() {
	s.pending = make(map[string]bool)
}
