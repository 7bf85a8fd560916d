package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateValidationErrors(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	type form struct {
		Name  string `json:"name" validate:"notblank"`
		Email string `json:"email" validate:"required,email"`
	}

	tests := []struct {
		name     string
		form     form
		wantFlds map[string]string
	}{
		{name: "valid", form: form{Name: "Awe", Email: "awe@test.cd"}},
		{
			name: "blank name & missing email", form: form{Name: "  "},
			wantFlds: map[string]string{"name": "this field cannot be blank", "email": "this field is required"},
		},
		{
			name: "invalid email", form: form{Name: "Awe", Email: "lol"},
			wantFlds: map[string]string{"email": "email must be a valid email address"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TranslateValidationErrors(validate.Struct(tt.form), translator)
			if tt.wantFlds == nil {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %T", err)
			assert.Equal(t, tt.wantFlds, vErr.FieldMap())
		})
	}
}

func TestTranslateValidationErrors_passThrough(t *testing.T) {
	err := errors.New("lol")
	assert.Equal(t, err, TranslateValidationErrors(err, NewTranslator()))
	assert.NoError(t, TranslateValidationErrors(nil, NewTranslator()))
}

func TestParseOrderings(t *testing.T) {
	tests := []struct {
		in   string
		want []DBOrdering
	}{
		{in: "", want: nil},
		{in: "mark", want: []DBOrdering{{Field: "mark", Ascending: true}}},
		{
			in:   "-mark, student_index,",
			want: []DBOrdering{{Field: "mark"}, {Field: "student_index", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrderings(tt.in))
		})
	}
	assert.Equal(t, "mark DESC", DBOrdering{Field: "mark"}.String())
}

func TestRound(t *testing.T) {
	assert.Equal(t, 66.67, Round(200.0/3, 2))
	assert.Equal(t, 50.0, Round(50, 2))
	assert.True(t, ContainsFold("Intro to GO", "go"))
}
