package catalog

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
)

var (
	answerInOptionsTag  = "answerinoptions"
	answerInOptionsText = "the correct answer must be one of the options"
)

// InitValidators registers the catalog validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, answerInOptionsTag, answerInOptionsText)
}

func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(NewQuestion)
	if !ok || q.CorrectAnswer == "" {
		return
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return
		}
	}
	sl.ReportError(q.CorrectAnswer, "correct_answer", "CorrectAnswer", answerInOptionsTag, "")
}
