package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

// gatewayIDPattern matches Razorpay entity ids such as pay_29QQoUBi66xm2f.
var gatewayIDPattern = regexp.MustCompile(`^([a-z]+)_[A-Za-z0-9]{6,40}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	// gatewayid=pay checks the id shape and its entity prefix.
	_ = v.RegisterValidation("gatewayid", func(fl validator.FieldLevel) bool {
		m := gatewayIDPattern.FindStringSubmatch(fl.Field().String())
		if m == nil {
			return false
		}
		prefix := fl.Param()
		return prefix == "" || m[1] == prefix
	})
	return v
}

// Struct runs dest's validate tags and maps failures onto CodeValidation.
func Struct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *pkgerrors.Error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "alphanum":
		return "must contain only letters and digits"
	case "hexadecimal":
		return "must be hexadecimal"
	case "gatewayid":
		if fe.Param() == "" {
			return "must be a gateway id"
		}
		return fmt.Sprintf("must be a gateway id starting with %s_", fe.Param())
	}
	return "is invalid"
}
