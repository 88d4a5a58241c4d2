package validation

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/soul-spirits/internal/types"
)

const (
	msgAgeRestricted    = "We adhere to responsible drinking standards. You must be 21 or older to use this application."
	msgMissingSelection = "Please fill in all required fields (Age, Zodiac, and MBTI)."
	msgMissingText      = "Please fill in all required fields (Name and Mood)."
	msgFailedCaptcha    = "Incorrect verification answer. Please try again."
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// profileValidator returns the shared validator with the profile tags registered.
func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("agegroup", func(fl validator.FieldLevel) bool {
			return types.IsKnownAgeGroup(types.AgeGroup(fl.Field().String()))
		})
		_ = v.RegisterValidation("mbti", func(fl validator.FieldLevel) bool {
			return types.IsKnownMBTI(fl.Field().String())
		})
		_ = v.RegisterValidation("zodiac", func(fl validator.FieldLevel) bool {
			return types.IsKnownZodiac(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidateProfile runs the profile checks in order: age gate, required
// selections, then required text. It returns the profile unchanged on success.
func ValidateProfile(profile types.UserProfile) (types.UserProfile, error) {
	if profile.AgeGroup == types.AgeGroupUnderage {
		return types.UserProfile{}, &Error{Code: CodeAgeRestricted, Message: msgAgeRestricted}
	}

	v := profileValidator()
	if err := v.StructPartial(profile, "AgeGroup", "Zodiac", "MBTI"); err != nil {
		return types.UserProfile{}, &Error{Code: CodeMissingRequiredSelection, Message: msgMissingSelection, Cause: fieldCause(err)}
	}
	if err := v.StructPartial(profile, "Name", "Mood"); err != nil {
		return types.UserProfile{}, &Error{Code: CodeMissingRequiredText, Message: msgMissingText, Cause: fieldCause(err)}
	}

	return profile, nil
}

// Validate runs the profile checks and then compares the verification answer
// against the expected sum. The check is pure; regenerating the challenge on
// a FailedVerification is the caller's job.
func Validate(profile types.UserProfile, captchaExpected int, captchaGiven string) (types.UserProfile, error) {
	validated, err := ValidateProfile(profile)
	if err != nil {
		return types.UserProfile{}, err
	}
	if err := CheckAnswer(captchaExpected, captchaGiven); err != nil {
		return types.UserProfile{}, err
	}
	return validated, nil
}

// CheckAnswer reports a FailedVerification unless given parses to expected.
func CheckAnswer(expected int, given string) error {
	answer, err := strconv.Atoi(strings.TrimSpace(given))
	if err != nil || answer != expected {
		return FailedVerification()
	}
	return nil
}

// FailedVerification returns the error for a wrong, expired or reused
// verification answer.
func FailedVerification() *Error {
	return &Error{Code: CodeFailedVerification, Message: msgFailedCaptcha}
}

// fieldCause reduces validator output to the offending field names.
func fieldCause(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		names = append(names, fe.Field())
	}
	return errors.New("invalid fields: " + strings.Join(names, ", "))
}
