package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate = newValidator()
	inputs   = newInputValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(paperStructLevel, Paper{})
	return v
}

func newInputValidator() *validator.Validate {
	v := validator.New()
	UseJSONNames(v)
	return v
}

// UseJSONNames makes v report fields by their json name.
func UseJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateInput checks v's `validate` tags and reports failures by json field name.
func ValidateInput(v any) error {
	if err := inputs.Struct(v); err != nil {
		return FromValidator(err)
	}
	return nil
}

// FromValidator converts validator.ValidationErrors into a ValidationError.
// Any other error is returned unchanged.
func FromValidator(err error) error {
	return toValidationError(err, func(fe validator.FieldError) string { return fe.Field() })
}

// ValidatePaper checks a paper against its kind's rules: clinical questions
// need 5 or 8 lettered options and a key among them; SJT ranking questions
// need 5 or 8 choices and a key that ranks all of them.
func ValidatePaper(p Paper) error {
	if err := validate.Struct(p); err != nil {
		return toValidationError(err, func(fe validator.FieldError) string {
			return strings.TrimPrefix(fe.Namespace(), "Paper.")
		})
	}
	return nil
}

func paperStructLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(Paper)
	for i, q := range p.Questions {
		field := fmt.Sprintf("Questions[%d]", i)
		switch p.Kind {
		case PaperClinical:
			validateClinicalQuestion(sl, field, q)
		case PaperSJT:
			validateSJTQuestion(sl, field, q)
		}
	}
}

func validateClinicalQuestion(sl validator.StructLevel, field string, q Question) {
	if q.Style != StyleEMQ && q.Style != StyleSBA {
		sl.ReportError(q.Style, field+".Style", "Style", "clinical_style", "")
	}
	if n := len(q.Options); n != 5 && n != 8 {
		sl.ReportError(q.Options, field+".Options", "Options", "option_count", "")
	}
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if seen[opt.Label] {
			sl.ReportError(q.Options, field+".Options", "Options", "unique_labels", "")
			break
		}
		seen[opt.Label] = true
	}
	if q.Answer.Type != TypeBestChoice || !seen[q.Answer.Choice] {
		sl.ReportError(q.Answer, field+".Answer", "Answer", "correct_in_options", "")
	}
}

func validateSJTQuestion(sl validator.StructLevel, field string, q Question) {
	if q.Style != StyleRanking && q.Style != StyleBestChoice {
		sl.ReportError(q.Style, field+".Style", "Style", "sjt_style", "")
		return
	}
	if len(q.Choices) == 0 {
		sl.ReportError(q.Choices, field+".Choices", "Choices", "required", "")
		return
	}
	if q.Answer.Type != q.Type() {
		sl.ReportError(q.Answer, field+".Answer", "Answer", "answer_type", "")
		return
	}
	if q.Type() == TypeRanking {
		if n := len(q.Choices); n != 5 && n != 8 {
			sl.ReportError(q.Choices, field+".Choices", "Choices", "choice_count", "")
		}
		if !q.IsPermutation(q.Answer.Ranking) {
			sl.ReportError(q.Answer, field+".Answer", "Answer", "ranking_permutation", "")
		}
		return
	}
	if !q.Accepts(q.Answer.Choice) {
		sl.ReportError(q.Answer, field+".Answer", "Answer", "correct_in_choices", "")
	}
}

var tagMessages = map[string]string{
	"required":            "is required",
	"gt":                  "must be positive",
	"email":               "must be a valid email address",
	"clinical_style":      "must be EMQ or SBA",
	"sjt_style":           "must be ranking or best_choice",
	"option_count":        "must have exactly 5 or 8 options",
	"unique_labels":       "option labels must be unique",
	"correct_in_options":  "correct option must be one of the option labels",
	"choice_count":        "ranking questions must have exactly 5 or 8 choices",
	"answer_type":         "answer type must match the question style",
	"ranking_permutation": "answer must rank every choice exactly once",
	"correct_in_choices":  "answer must be one of the choices",
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must not be empty"
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must have at most " + fe.Param() + " items"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	return "failed " + fe.Tag()
}

func toValidationError(err error, name func(validator.FieldError) string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Add(name(fe), message(fe))
	}
	return out
}
