package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}

// Validator validates configuration values using go-playground/validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a configuration validator with the custom rules
// registered.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterValidation("pattern_list", validatePatternList)
	return &Validator{validate: v}
}

// Validate checks a complete configuration.
func (v *Validator) Validate(config *Config) error {
	if config.Version == "" {
		config.Version = "1.0"
	}

	if err := v.validate.Struct(config); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			e := verrs[0]
			msg := fmt.Sprintf("validation failed on tag '%s' with value '%v'", e.Tag(), e.Value())
			if e.Tag() == "pattern_list" {
				msg = fmt.Sprintf("invalid pattern list %q", e.Value())
			}
			return ValidationError{
				Field:   e.Namespace(),
				Message: msg,
			}
		}
		return err
	}

	if _, ok := config.Profiles[config.DefaultProfile]; !ok {
		return ValidationError{
			Field:   "default_profile",
			Message: fmt.Sprintf("profile %q is not defined", config.DefaultProfile),
		}
	}
	return nil
}

// validatePatternList is the struct-tag form of checkPatternList.
func validatePatternList(fl validator.FieldLevel) bool {
	return checkPatternList(fl.Field().String()) == nil
}

// checkPatternList compiles each entry of a semicolon-separated regex list.
func checkPatternList(list string) error {
	if list == "" {
		return nil
	}
	for _, pattern := range strings.Split(list, ";") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %v", pattern, err)
		}
	}
	return nil
}
