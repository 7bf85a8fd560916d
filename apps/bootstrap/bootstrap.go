// Package bootstrap builds the dependencies shared by the app's executables.
package bootstrap

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/core"
	"github.com/trezcool/masomo-results/core/exam"
	"github.com/trezcool/masomo-results/core/result"
	emailsvc "github.com/trezcool/masomo-results/services/email"
	logsvc "github.com/trezcool/masomo-results/services/logger"
	"github.com/trezcool/masomo-results/services/portal"
	"github.com/trezcool/masomo-results/storage/database"
	"github.com/trezcool/masomo-results/storage/database/dummy"
	sqlxrepos "github.com/trezcool/masomo-results/storage/database/sqlx"
)

// NewLogger returns a logger writing to stdout with prefix; Rollbar reporting is enabled outside debug mode.
func NewLogger(conf *core.Config, prefix string) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	return logger
}

// NewValidator returns a validator with all the app's validation tags & messages registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	result.InitValidators(validate, translator)
	exam.InitValidators(validate, translator)
	return validate, translator
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// NewRepository returns the data service selected by conf.Backend.
// The returned func releases its resources.
func NewRepository(conf *core.Config, logger core.Logger) (exam.Repository, func(), error) {
	switch conf.Backend {
	case core.BackendDummy:
		db, err := dummydb.Open()
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening dummy database")
		}
		db.SeedDemo()
		logger.Warn("using the in-memory data service: nothing will be persisted")
		return dummydb.NewExamRepository(db), func() {}, nil

	case core.BackendDatabase:
		db, err := database.Setup(conf)
		if err != nil {
			return nil, nil, errors.Wrap(err, "setting up database")
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing database: %v", err), err)
			}
		}
		return sqlxrepos.NewExamRepository(db), closeDB, nil

	case core.BackendPortal:
		return portal.NewRepository(conf), func() {}, nil

	default:
		return nil, nil, errors.Errorf("unknown backend %q", conf.Backend)
	}
}

// NewExamService wires up the exam service and everything it depends on.
// Email templates are parsed along the way.
func NewExamService(conf *core.Config, logger core.Logger) (*exam.Service, func(), error) {
	repo, closeRepo, err := NewRepository(conf, logger)
	if err != nil {
		return nil, nil, err
	}
	core.ParseEmailTemplates(logger)

	validate, translator := NewValidator()
	svc := exam.NewService(repo, NewEmailService(conf, logger), logger, validate, translator, conf)
	return svc, closeRepo, nil
}
