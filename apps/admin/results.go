package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
)

// markEdits collects the -set INDEX=MARK flags of the edit command.
type markEdits []markEdit

type markEdit struct {
	index string
	value string
}

func (e *markEdits) String() string {
	parts := make([]string, len(*e))
	for i, ed := range *e {
		parts[i] = ed.index + "=" + ed.value
	}
	return strings.Join(parts, ",")
}

func (e *markEdits) Set(s string) error {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return fmt.Errorf("%q must be of form INDEX=MARK", s)
	}
	*e = append(*e, markEdit{index: core.CleanString(s[:idx]), value: strings.TrimSpace(s[idx+1:])})
	return nil
}

func (cli *commandLine) context() context.Context {
	return core.WithActor(context.Background(), cliActor)
}

// upload runs a spreadsheet through the ingestion pipeline and records its results as a new exam.
func (cli *commandLine) upload(classID int, date, typ, path string, yes bool) error {
	examDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer func() { _ = f.Close() }()

	rows := result.NewRowValidator(cli.validate, cli.translator)
	set, err := result.IngestFrom(f, filepath.Base(path), cli.conf.Upload.MaxSize, rows)
	if err != nil {
		return err
	}
	summary := summarizeSet(set)
	fmt.Fprintf(cli.out, "%d result(s) read: mean %.2f, median %.2f, min %d, max %d\n",
		summary.Count, summary.Mean, summary.Median, summary.Min, summary.Max)

	ex, err := cli.examSvc.UploadResults(cli.context(), exam.NewExamResults{
		ClassID:  classID,
		ExamType: typ,
		ExamDate: examDate,
		Results:  set,
	}, cli.confirm(yes))
	if err != nil {
		if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && vErr.FieldMap() != nil {
			return fmt.Errorf("invalid form: %v", vErr.FieldMap())
		}
		return err
	}
	fmt.Fprintf(cli.out, "exam %d created\n", ex.ExamID)
	return nil
}

// view prints the results of an exam as a table followed by their summary.
func (cli *commandLine) view(examID int, filter exam.ResultsFilter) error {
	ctx := cli.context()
	ex, err := cli.examSvc.Exam(ctx, examID)
	if err != nil {
		return err
	}
	results, err := cli.examSvc.Results(ctx, examID, filter)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "exam %d: %s held on %s\n\n", ex.ExamID, ex.Type, ex.DateHeld.Format("2 Jan 2006"))
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tYEAR\tMARK")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.StudentIndex, r.StudentName, r.Year, r.Mark)
	}
	if err = w.Flush(); err != nil {
		return err
	}

	s := exam.Summarize(results)
	fmt.Fprintf(cli.out, "\ncount %d, mean %.2f, median %.2f, std dev %.2f, min %d, max %d\n",
		s.Count, s.Mean, s.Median, s.StdDev, s.Min, s.Max)
	return nil
}

// edit applies edits to the results of an exam, prints the changes as a unified diff then saves them.
func (cli *commandLine) edit(examID int, edits markEdits, yes bool) error {
	ctx := cli.context()
	stager := result.NewStager()
	if err := cli.examSvc.Review(ctx, examID, stager, nil); err != nil {
		return err
	}
	for _, ed := range edits {
		if err := stager.ApplyEdit(ed.index, ed.value); err != nil {
			return err
		}
	}
	if !stager.Dirty() {
		fmt.Fprintln(cli.out, "no changes")
		return nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        setLines(stager.Baseline()),
		B:        setLines(stager.Working()),
		FromFile: "exam " + strconv.Itoa(examID),
		ToFile:   "exam " + strconv.Itoa(examID) + " (edited)",
		Context:  1,
	})
	if err != nil {
		return errors.Wrap(err, "diffing results")
	}
	fmt.Fprint(cli.out, diff)

	n := len(stager.Changes())
	if err = cli.examSvc.SaveEdits(ctx, examID, stager, cli.confirm(yes)); err != nil {
		if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && vErr.FieldMap() != nil {
			return fmt.Errorf("%v: %v", vErr, strings.Join(stager.Pending(), ", "))
		}
		return err
	}
	fmt.Fprintf(cli.out, "%d change(s) saved\n", n)
	return nil
}

func (cli *commandLine) deleteExam(examID int, yes bool) error {
	if err := cli.examSvc.DeleteExam(cli.context(), examID, nil, cli.confirm(yes)); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "exam %d deleted\n", examID)
	return nil
}

func setLines(set result.Set) []string {
	lines := make([]string, len(set))
	for i, r := range set {
		lines[i] = r.Index + "\t" + strconv.Itoa(r.Mark) + "\n"
	}
	return lines
}

func summarizeSet(set result.Set) exam.Summary {
	results := make([]exam.StudentResult, len(set))
	for i, r := range set {
		results[i] = exam.StudentResult{StudentIndex: r.Index, Mark: r.Mark}
	}
	return exam.Summarize(results)
}
