package core

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
)

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
