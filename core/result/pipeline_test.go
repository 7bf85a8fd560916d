package result_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-results/core/result"
	testutil "github.com/trezcool/masomo-results/tests"
)

func TestNormalize(t *testing.T) {
	got := result.Normalize([]result.RawRow{
		{"index": "B000002", "mark": "70"},
		{"index": "A000001", "mark": "40.0"},
		{"index": "A000010", "mark": "0", "name": "Cid"},
	})
	want := result.Set{{Index: "A000001", Mark: 40}, {Index: "A000010", Mark: 0}, {Index: "B000002", Mark: 70}}
	assert.Equal(t, want, got)
	assert.Equal(t, []int{40, 0, 70}, got.Marks())
}

func TestNewSet(t *testing.T) {
	records := []result.Record{{Index: "B000002", Mark: 70}, {Index: "A000001", Mark: 40}}
	set := result.NewSet(records...)

	assert.Equal(t, result.Set{{Index: "A000001", Mark: 40}, {Index: "B000002", Mark: 70}}, set)
	assert.Equal(t, "B000002", records[0].Index, "input sorted in place")

	i, ok := set.Find("B000002")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = set.Find("A000002")
	assert.False(t, ok)
}

func TestIngest(t *testing.T) {
	v := newRowValidator()

	t.Run("valid upload", func(t *testing.T) {
		content := testutil.ResultsXLSX(t,
			result.Record{Index: "B000002", Mark: 70},
			result.Record{Index: "A000001", Mark: 40},
		)
		set, err := result.Ingest(content, "results.xlsx", v)
		require.NoError(t, err)
		assert.Equal(t, result.Set{{Index: "A000001", Mark: 40}, {Index: "B000002", Mark: 70}}, set)
	})

	t.Run("invalid batch stages nothing", func(t *testing.T) {
		s := newLoadedStager()
		before := s.Working()

		content := testutil.XLSX(t, testutil.Sheet{Name: "Sheet1", Rows: [][]interface{}{
			{"index", "mark"},
			{"a000001", 55},
			{"B000002", 101},
		}})
		set, err := result.Ingest(content, "results.xlsx", v)
		assert.Nil(t, set)

		var vErr *result.ValidationError
		require.True(t, errors.As(err, &vErr), "got %T: %v", err, err)
		assert.Equal(t, 1, vErr.Row)
		assert.Equal(t, "index", vErr.Field)
		assert.Equal(t, before, s.Working())
	})

	t.Run("corrupt file", func(t *testing.T) {
		_, err := result.Ingest([]byte("PK\x03\x04garbage"), "results.xlsx", v)
		var dErr *result.DecodeError
		assert.True(t, errors.As(err, &dErr), "got %T: %v", err, err)
	})

	t.Run("too large", func(t *testing.T) {
		content := []byte("index,mark\nA000001,40\n")
		_, err := result.IngestFrom(bytes.NewReader(content), "results.csv", 10, v)
		var dErr *result.DecodeError
		assert.True(t, errors.As(err, &dErr), "got %T: %v", err, err)

		set, err := result.IngestFrom(bytes.NewReader(content), "results.csv", 1<<10, v)
		require.NoError(t, err)
		assert.Equal(t, result.Set{{Index: "A000001", Mark: 40}}, set)
	})
}

func TestIntake(t *testing.T) {
	var in result.Intake

	first := in.Begin()
	second := in.Begin()
	assert.Equal(t, second, in.Latest())

	var applied []uint64
	// the newest decode completes first, the stale one is dropped
	assert.True(t, in.Complete(second, func() { applied = append(applied, second) }))
	assert.False(t, in.Complete(first, func() { applied = append(applied, first) }))
	assert.Equal(t, []uint64{second}, applied)
}

func TestIntake_concurrent(t *testing.T) {
	var (
		in      result.Intake
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	seqs := make([]uint64, 50)
	for i := range seqs {
		seqs[i] = in.Begin()
	}
	for _, seq := range seqs {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			in.Complete(seq, func() {
				mu.Lock()
				applied++
				mu.Unlock()
			})
		}(seq)
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
}
