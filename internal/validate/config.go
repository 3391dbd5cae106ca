package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/libertas/internal/model"
)

// ErrInvalidConfig is returned when a configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Config checks struct-level rules (tags on model.Config) and the
// cross-field rules tags cannot express: every season must end after it
// starts, and season names must be unique.
func Config(cfg *model.Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	var problems []string

	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	seen := make(map[string]bool)
	for _, s := range cfg.Analysis.Seasons {
		if seen[s.Name] {
			problems = append(problems, fmt.Sprintf("season %q is defined twice", s.Name))
		}
		seen[s.Name] = true

		start, errStart := model.ParseDate(s.Start)
		end, errEnd := model.ParseDate(s.End)
		if errStart != nil || errEnd != nil {
			// Already reported by the datetime tag
			continue
		}
		if !start.Before(end) {
			problems = append(problems, fmt.Sprintf("season %q must start before it ends (%s >= %s)", s.Name, s.Start, s.End))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// describe renders a field error with the config key path
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format, got %q", field, fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
