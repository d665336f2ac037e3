package checkout

import (
	"reflect"
	"strings"

	"github.com/achlys/whimsical-backend/internal/app/model"
	apperrors "github.com/achlys/whimsical-backend/internal/errors"
	"github.com/go-playground/validator/v10"
)

// MessageMissingBuyerFields is shown when a required contact field is blank.
const MessageMissingBuyerFields = "Please fill in your name, email, contact number, and address."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ValidateBuyer trims every field and checks that none is empty. It returns
// the trimmed copy on success.
func ValidateBuyer(b model.BuyerInfo) (model.BuyerInfo, error) {
	trimmed := model.BuyerInfo{
		Name:    strings.TrimSpace(b.Name),
		Email:   strings.TrimSpace(b.Email),
		Phone:   strings.TrimSpace(b.Phone),
		Address: strings.TrimSpace(b.Address),
	}

	if err := validate.Struct(trimmed); err != nil {
		fields := map[string]string{}
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				fields[fe.Field()] = validationMessage(fe)
			}
		}
		return model.BuyerInfo{}, apperrors.Validation(MessageMissingBuyerFields, fields)
	}
	return trimmed, nil
}

// validationMessage covers the tags model.BuyerInfo declares.
func validationMessage(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return "is required"
	}
	return "is invalid"
}
