package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ErrValidation はリクエスト検証エラーを表す
var ErrValidation = errors.New("invalid request")

const notBlankTag = "notblank"

// FieldError はフィールド単位の検証エラー
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError は検証エラーの詳細を保持する
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validator はリクエストの構造検証とカタログ照合を行う
type Validator struct {
	catalog    *Catalog
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator は新しいValidatorを作成する
func NewValidator(c *Catalog) *Validator {
	v := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// エラーにはGoのフィールド名ではなくJSONタグ名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		if str, ok := fl.Field().Interface().(string); ok {
			return strings.TrimSpace(str) != ""
		}
		return false
	})
	_ = v.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string { return "this field cannot be blank" },
	)

	return &Validator{catalog: c, validate: v, translator: translator}
}

// Validate はリクエストを検証し、正規化したリクエストを返す
// 委員会コードと教科名はカタログ上の表記に揃える
func (v *Validator) Validate(req Request) (Request, error) {
	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, FieldError{Field: fe.Field(), Message: fe.Translate(v.translator)})
			}
			return req, &ValidationError{Fields: fields}
		}
		return req, fmt.Errorf("failed to validate request: %w", err)
	}

	board, ok := v.catalog.FindBoard(req.Board).Get()
	if !ok {
		return req, &ValidationError{Fields: []FieldError{{
			Field:   "board",
			Message: fmt.Sprintf("unknown board %q", req.Board),
		}}}
	}

	subject, ok := v.catalog.FindSubject(board.Code, req.Class, req.Subject).Get()
	if !ok {
		return req, &ValidationError{Fields: []FieldError{{
			Field:   "subject",
			Message: fmt.Sprintf("subject %q is not offered for class %d on %s", req.Subject, req.Class, board.Code),
		}}}
	}

	normalized := req
	normalized.Board = board.Code
	normalized.Subject = subject.Name
	normalized.Chapter = normalizeTitle(req.Chapter)
	return normalized, nil
}
