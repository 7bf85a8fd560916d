package exam

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-results/core"
)

var (
	notFutureTag  = "notfuture"
	notFutureText = "{0} cannot be in the future"

	examTypeTag  = "examtype"
	examTypeText = "{0} must be one of: exam, test, assignment, quiz"

	uniqueTag  = "unique"
	uniqueText = "{0} cannot contain the same index twice"

	// timeNow is mockable
	timeNow = time.Now
)

// InitValidators registers the validation tags of exams.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(notFutureTag, notFutureValidation)
	core.RegisterCustomTranslation(validate, translator, notFutureTag, notFutureText)

	_ = validate.RegisterValidation(examTypeTag, examTypeValidation)
	core.RegisterCustomTranslation(validate, translator, examTypeTag, examTypeText)

	core.RegisterCustomTranslation(validate, translator, uniqueTag, uniqueText, true)
}

// Validate cleans & validates ner.
func (ner *NewExamResults) Validate(validate *validator.Validate, translator ut.Translator) error {
	ner.ExamType = core.CleanString(ner.ExamType, true /* lower */)
	if ner.ExamType == "" {
		ner.ExamType = TypeExam
	}
	return core.TranslateValidationErrors(validate.Struct(ner), translator)
}

// Custom Validators

// notFutureValidation rejects dates after today.
func notFutureValidation(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	now := timeNow()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return t.Before(endOfDay)
}

func examTypeValidation(fl validator.FieldLevel) bool {
	typ := fl.Field().String()
	for _, t := range Types {
		if t == typ {
			return true
		}
	}
	return false
}
