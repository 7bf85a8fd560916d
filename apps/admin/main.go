package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/apps/bootstrap"
	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/storage/database"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	logger = bootstrap.NewLogger(conf, "ADMIN")

	cli := commandLine{conf: conf, out: os.Stdout}
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			errAndDie(database.CreateIfNotExist(conf))
			db, err := database.Open(conf)
			errAndDie(err)
			defer func() { _ = db.Close() }()
			cli.db = db.DB

		case "upload", "view", "edit", "delete":
			svc, closeRepo, err := bootstrap.NewExamService(conf, logger)
			errAndDie(err)
			defer closeRepo()
			cli.examSvc = svc
			cli.validate, cli.translator = bootstrap.NewValidator()
		}
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		switch errors.Cause(err) {
		case errHelp:
		case exam.ErrNotConfirmed:
			fmt.Fprintln(os.Stderr, "\naborted: action not confirmed (use -yes when stdin is not a terminal)")
		default:
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
