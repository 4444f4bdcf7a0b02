package records

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/talent-matcher/internal/apperror"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateCandidate checks the candidate shape and reports violations as input errors.
func ValidateCandidate(c *Candidate) error {
	if c == nil {
		return apperror.Input("validate candidate", "candidate is nil")
	}
	if err := validatorInstance().Struct(c); err != nil {
		return apperror.Input("validate candidate", "%s: %s", c.ID, describe(err))
	}
	return nil
}

// ValidateJob checks the job shape. A negative minimum experience is a configuration error; other
// violations are input errors.
func ValidateJob(j *Job) error {
	if j == nil {
		return apperror.Input("validate job", "job is nil")
	}
	if j.MinExperience < 0 {
		return apperror.Configuration("validate job", "%s: min_experience must be >= 0, got %v", j.ID, j.MinExperience)
	}
	if err := validatorInstance().Struct(j); err != nil {
		return apperror.Input("validate job", "%s: %s", j.ID, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
