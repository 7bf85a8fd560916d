package result

import (
	"math"
	"regexp"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"

	"github.com/trezcool/masomo-results/core"
)

var (
	// custom validation tags & texts
	studentIndexTag   = "studentindex"
	studentIndexText  = "{0} must be one uppercase letter followed by six digits"
	studentIndexRegex = regexp.MustCompile(`^[A-Z][0-9]{6}$`)

	markTag  = "mark"
	markText = "{0} must be a number between 0 and 100"

	integralTag  = "integral"
	integralText = "{0} must be a whole number"
)

// InitValidators registers the validation tags of results.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(studentIndexTag, studentIndexValidation)
	core.RegisterCustomTranslation(validate, translator, studentIndexTag, studentIndexText)

	_ = validate.RegisterValidation(markTag, markValidation)
	core.RegisterCustomTranslation(validate, translator, markTag, markText)

	_ = validate.RegisterValidation(integralTag, integralValidation)
	core.RegisterCustomTranslation(validate, translator, integralTag, integralText)
}

// IsStudentIndex reports whether s is a valid student index, eg: "A000001".
func IsStudentIndex(s string) bool {
	return studentIndexRegex.MatchString(s)
}

// rowFields is the shape every row must have. Fields are checked in order.
type rowFields struct {
	Index string `json:"index" validate:"studentindex"`
	Mark  string `json:"mark" validate:"mark,integral"`
}

// RowValidator checks a batch of raw rows. A batch is valid only if all its rows are.
type RowValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewRowValidator returns a RowValidator; validate must have been set up with InitValidators.
func NewRowValidator(validate *validator.Validate, translator ut.Translator) *RowValidator {
	vala.BeginValidation().Validate(
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(translator, "translator"),
	).CheckAndPanic()
	return &RowValidator{validate: validate, translator: translator}
}

// Validate returns rows unchanged if they are all valid, or a *ValidationError describing the first violation:
//  1. the batch is not empty and its first row has both the index & mark columns,
//  2. each row's index is a student index,
//  3. each row's mark is a whole number between 0 and 100,
//  4. no index appears twice.
func (v *RowValidator) Validate(rows []RawRow) ([]RawRow, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{Reason: "no results found"}
	}
	for _, col := range []string{IndexColumn, MarkColumn} {
		if _, ok := rows[0][col]; !ok {
			return nil, &ValidationError{Reason: "missing " + strconv.Quote(col) + " column", Field: col}
		}
	}

	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		fields := rowFields{Index: row[IndexColumn], Mark: row[MarkColumn]}
		if err := v.validate.Struct(fields); err != nil {
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok || len(vErrs) == 0 {
				return nil, &ValidationError{Reason: err.Error(), Row: i + 1}
			}
			return nil, &ValidationError{Reason: vErrs[0].Translate(v.translator), Row: i + 1, Field: vErrs[0].Field()}
		}
		if first, dup := seen[fields.Index]; dup {
			return nil, &ValidationError{
				Reason: "index " + fields.Index + " already found on row " + strconv.Itoa(first),
				Row:    i + 1,
				Field:  IndexColumn,
			}
		}
		seen[fields.Index] = i + 1
	}
	return rows, nil
}

// Custom Validators

func studentIndexValidation(fl validator.FieldLevel) bool {
	return IsStudentIndex(fl.Field().String())
}

// markValidation accepts numbers within [MinMark, MaxMark], as text or as ints.
func markValidation(fl validator.FieldLevel) bool {
	v, ok := fieldNumber(fl)
	return ok && v >= MinMark && v <= MaxMark
}

func integralValidation(fl validator.FieldLevel) bool {
	v, ok := fieldNumber(fl)
	return ok && v == math.Trunc(v)
}

func fieldNumber(fl validator.FieldLevel) (float64, bool) {
	switch val := fl.Field().Interface().(type) {
	case string:
		return parseMark(val)
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}

func parseMark(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
