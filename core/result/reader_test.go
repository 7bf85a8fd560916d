package result_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-results/core/result"
	testutil "github.com/trezcool/masomo-results/tests"
)

func TestRead(t *testing.T) {
	results := testutil.Sheet{Name: "Results", Rows: [][]interface{}{
		{"index", "mark", "name"},
		{"B000002", 70, "Bea"},
		{},
		{"A000001", 40},
		{nil, 55.5, ""},
	}}
	others := testutil.Sheet{Name: "Others", Rows: [][]interface{}{
		{"index", "mark"},
		{"Z999999", 1},
	}}

	tests := []struct {
		name    string
		content []byte
		file    string
		want    []result.RawRow
	}{
		{
			name:    "xlsx first sheet only",
			content: testutil.XLSX(t, results, others),
			file:    "results.xlsx",
			want: []result.RawRow{
				{"index": "B000002", "mark": "70", "name": "Bea"},
				{"index": "A000001", "mark": "40"},
				{"mark": "55.5"},
			},
		},
		{
			name:    "xlsx whatever the name",
			content: testutil.XLSX(t, testutil.Sheet{Name: "S", Rows: [][]interface{}{{"index", "mark"}, {"A000001", 1}}}),
			file:    "results",
			want:    []result.RawRow{{"index": "A000001", "mark": "1"}},
		},
		{
			name:    "xlsx header only",
			content: testutil.XLSX(t, testutil.Sheet{Name: "S", Rows: [][]interface{}{{"index", "mark"}}}),
			file:    "results.xlsx",
			want:    []result.RawRow{},
		},
		{
			name:    "xlsx empty sheet",
			content: testutil.XLSX(t, testutil.Sheet{Name: "S"}),
			file:    "results.xlsx",
			want:    []result.RawRow{},
		},
		{
			name:    "csv",
			content: []byte("\xEF\xBB\xBF index ,mark,\nA000001,40\n\n,\nB000002,,x\n"),
			file:    "RESULTS.CSV",
			want: []result.RawRow{
				{"index": "A000001", "mark": "40"},
				{"index": "B000002"},
			},
		},
		{
			name:    "duplicate column keeps the first",
			content: []byte("index,mark,mark\nA000001,40,50\n"),
			file:    "results.csv",
			want:    []result.RawRow{{"index": "A000001", "mark": "40"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := append([]byte(nil), tt.content...)
			got, err := result.Read(tt.content, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, content, tt.content, "input mutated")
		})
	}
}

func TestRead_decodeErrors(t *testing.T) {
	xlsx := testutil.ResultsXLSX(t, result.Record{Index: "A000001", Mark: 40})

	tests := []struct {
		name    string
		content []byte
		file    string
		wantMsg string
	}{
		{name: "empty", file: "results.xlsx", wantMsg: "empty file"},
		{name: "not a spreadsheet", content: []byte("hello world"), file: "results.txt", wantMsg: "unsupported"},
		{name: "legacy xls", content: []byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1garbage"), file: "results.xls", wantMsg: "unsupported"},
		{name: "truncated xlsx", content: xlsx[:len(xlsx)/2], file: "results.xlsx", wantMsg: "opening workbook"},
		{name: "corrupt zip", content: []byte("PK\x03\x04 not really a zip"), file: "results.xlsx", wantMsg: "opening workbook"},
		{name: "bad csv quoting", content: []byte("index,mark\n\"A000001,40\n"), file: "results.csv", wantMsg: "reading csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := result.Read(tt.content, tt.file)
			assert.Nil(t, rows)

			var dErr *result.DecodeError
			require.True(t, errors.As(err, &dErr), "got %T: %v", err, err)
			assert.Equal(t, tt.file, dErr.Name)
			assert.Contains(t, dErr.Error(), tt.wantMsg)
		})
	}
}

func TestReadFrom(t *testing.T) {
	content := "index,mark\nA000001,40\n"

	rows, err := result.ReadFrom(strings.NewReader(content), "results.csv", int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, []result.RawRow{{"index": "A000001", "mark": "40"}}, rows)

	rows, err = result.ReadFrom(strings.NewReader(content), "results.csv", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = result.ReadFrom(bytes.NewReader([]byte(content)), "results.csv", int64(len(content)-1))
	var dErr *result.DecodeError
	require.True(t, errors.As(err, &dErr))
	assert.Contains(t, dErr.Error(), "file too large")
}
