package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
)

var (
	// mockable
	isTerminalFunc = term.IsTerminal
	readLineFunc   = readLine

	errHelp = errors.New("help provided")

	cliActor = core.Actor{ID: "admin-cli", Username: "admin", Name: "Admin CLI"}
)

type commandLine struct {
	conf       *core.Config
	out        io.Writer
	db         *sql.DB       // migrate
	examSvc    *exam.Service // upload, view, edit, delete
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate up|up-by-one|up-to VERSION|down|down-to VERSION|redo - migrate the database")
	fmt.Fprintln(cli.out, "  token -username USERNAME -role ROLE [-name NAME] [-email EMAIL] [-index INDEX] - issue an API token")
	fmt.Fprintln(cli.out, "  upload -class CLASS_ID -date YYYY-MM-DD -file FILE [-type TYPE] [-yes] - record the results of a new exam")
	fmt.Fprintln(cli.out, "  view -exam EXAM_ID [-search TEXT] [-ordering FIELDS] - print the results of an exam")
	fmt.Fprintln(cli.out, "  edit -exam EXAM_ID -set INDEX=MARK [-set INDEX=MARK ...] [-yes] - change marks of an exam")
	fmt.Fprintln(cli.out, "  delete -exam EXAM_ID [-yes] - delete an exam and all its results")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "token":
		cmd := cli.newFlagSet("token")
		uname := cmd.String("username", "", "The user's username.")
		name := cmd.String("name", "", "The user's full name.")
		email := cmd.String("email", "", "The user's email.")
		role := cmd.String("role", "", "One of: "+strings.Join(rolesList(), ", ")+".")
		index := cmd.String("index", "", "The student index; required for students.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uname == "" || *role == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.token(*uname, *name, *email, *role, *index)

	case "upload":
		cmd := cli.newFlagSet("upload")
		classID := cmd.Int("class", 0, "The class ID.")
		date := cmd.String("date", "", "The date the exam was held, eg: 2021-07-01.")
		typ := cmd.String("type", exam.TypeExam, "One of: "+strings.Join(exam.Types, ", ")+".")
		file := cmd.String("file", "", "The .xlsx or .csv file holding the index & mark columns.")
		yes := cmd.Bool("yes", false, "Do not ask for confirmation.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *classID == 0 || *date == "" || *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.upload(*classID, *date, *typ, *file, *yes)

	case "view":
		cmd := cli.newFlagSet("view")
		examID := cmd.Int("exam", 0, "The exam ID.")
		search := cmd.String("search", "", "Only show the students whose index or name contains TEXT.")
		ordering := cmd.String("ordering", "", "Eg: -mark,student_name")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *examID == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.view(*examID, exam.ResultsFilter{Search: *search, Ordering: *ordering})

	case "edit":
		cmd := cli.newFlagSet("edit")
		examID := cmd.Int("exam", 0, "The exam ID.")
		var edits markEdits
		cmd.Var(&edits, "set", "INDEX=MARK; can be repeated. An empty MARK leaves the row pending.")
		yes := cmd.Bool("yes", false, "Do not ask for confirmation.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *examID == 0 || len(edits) == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.edit(*examID, edits, *yes)

	case "delete":
		cmd := cli.newFlagSet("delete")
		examID := cmd.Int("exam", 0, "The exam ID.")
		yes := cmd.Bool("yes", false, "Do not ask for confirmation.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *examID == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.deleteExam(*examID, *yes)

	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks the question on the terminal; without a terminal, only -yes confirms.
func (cli *commandLine) confirm(yes bool) exam.Confirm {
	if yes {
		return exam.Confirmed(true)
	}
	return func(action string) bool {
		if !isTerminalFunc(int(os.Stdin.Fd())) {
			return false
		}
		fmt.Fprintf(cli.out, "%s? [y/N] ", action)
		answer, err := readLineFunc()
		if err != nil {
			return false
		}
		switch core.CleanString(answer, true /* lower */) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}
