package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/trezcool/goose"

	"github.com/trezcool/masomo-results/fs"
	"github.com/trezcool/masomo-results/storage/database"
)

type migrator struct {
	up      func(db *sql.DB, fsys fs.FS, dir string) error
	upByOne func(db *sql.DB, fsys fs.FS, dir string) error
	upTo    func(db *sql.DB, fsys fs.FS, dir string, version int64) error
	down    func(db *sql.DB, fsys fs.FS, dir string) error
	downTo  func(db *sql.DB, fsys fs.FS, dir string, version int64) error
	redo    func(db *sql.DB, fsys fs.FS, dir string) error
}

var gooseMigrator = migrator{ // mockable
	up:      goose.Up,
	upByOne: goose.UpByOne,
	upTo:    goose.UpTo,
	down:    goose.Down,
	downTo:  goose.DownTo,
	redo:    goose.Redo,
}

func (cli *commandLine) migrate(args []string) error {
	m, dir := gooseMigrator, database.MigrationsDir

	version := func() (int64, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("%s must be of form: admin migrate %s VERSION", args[0], args[0])
		}
		v, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("version must be a number (got '%s')", args[1])
		}
		return v, nil
	}

	switch args[0] {
	case "up":
		return m.up(cli.db, appfs.FS, dir)
	case "up-by-one":
		return m.upByOne(cli.db, appfs.FS, dir)
	case "up-to":
		v, err := version()
		if err != nil {
			return err
		}
		return m.upTo(cli.db, appfs.FS, dir, v)
	case "down":
		return m.down(cli.db, appfs.FS, dir)
	case "down-to":
		v, err := version()
		if err != nil {
			return err
		}
		return m.downTo(cli.db, appfs.FS, dir, v)
	case "redo":
		return m.redo(cli.db, appfs.FS, dir)
	default:
		return fmt.Errorf("%q: no such command", args[0])
	}
}
