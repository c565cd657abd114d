package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// PlanNameReason tells why a plan name was rejected.
type PlanNameReason string

const (
	PlanNameEmpty          PlanNameReason = "empty"
	PlanNameNoSeparator    PlanNameReason = "no_separator"
	PlanNameTooManyParts   PlanNameReason = "too_many_parts"
	PlanNameBadProjectPart PlanNameReason = "bad_project"
	PlanNameBadPlanPart    PlanNameReason = "bad_plan"
)

// PlanSeparator splits the project and plan halves of a Bamboo plan name.
const PlanSeparator = " - "

var (
	reSeparator = regexp.MustCompile(`^.+\s-\s.+$`)
	rePlanPart  = regexp.MustCompile(`^[A-Za-z0-9._\s]+$`)
	rePlanKey   = regexp.MustCompile(`^[A-Za-z0-9]+-[A-Za-z0-9]+$`)
	reMailLocal = regexp.MustCompile(`<([^@]+)`)
)

// PlanNameError is returned by ValidatePlanName. It unwraps to ErrInvalidPlanName.
type PlanNameError struct {
	Reason PlanNameReason
	// Part is the offending fragment (the whole name for empty/separator errors).
	Part string
}

func (e *PlanNameError) Error() string {
	switch e.Reason {
	case PlanNameEmpty:
		return "plan name must not be empty"
	case PlanNameNoSeparator:
		return fmt.Sprintf("plan name %q has no %q separator", e.Part, PlanSeparator)
	case PlanNameTooManyParts:
		return fmt.Sprintf("plan name %q must contain exactly one %q", e.Part, PlanSeparator)
	case PlanNameBadProjectPart:
		return fmt.Sprintf("project name %q contains invalid characters", e.Part)
	default:
		return fmt.Sprintf("plan part %q contains invalid characters", e.Part)
	}
}

func (e *PlanNameError) Unwrap() error { return ErrInvalidPlanName }

// ValidatePlanName checks the "Project - Plan" form. Letters, digits, dots,
// underscores and spaces are allowed on both sides of the separator.
func ValidatePlanName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &PlanNameError{Reason: PlanNameEmpty}
	}
	if !reSeparator.MatchString(name) {
		return &PlanNameError{Reason: PlanNameNoSeparator, Part: name}
	}
	parts := strings.Split(name, PlanSeparator)
	if len(parts) != 2 {
		return &PlanNameError{Reason: PlanNameTooManyParts, Part: name}
	}
	if !rePlanPart.MatchString(parts[0]) {
		return &PlanNameError{Reason: PlanNameBadProjectPart, Part: parts[0]}
	}
	if !rePlanPart.MatchString(parts[1]) {
		return &PlanNameError{Reason: PlanNameBadPlanPart, Part: parts[1]}
	}
	return nil
}

// NormalizePlanName keeps the first two dash separated parts and trims them:
// "PROJ - PLAN - 123" -> "PROJ - PLAN".
func NormalizePlanName(full string) string {
	if strings.TrimSpace(full) == "" {
		return full
	}
	parts := strings.Split(full, "-")
	if len(parts) < 2 {
		return full
	}
	return strings.TrimSpace(parts[0]) + PlanSeparator + strings.TrimSpace(parts[1])
}

// IsValidPlanKey reports whether key looks like a Bamboo "PROJECT-PLAN" key.
func IsValidPlanKey(key string) bool {
	return rePlanKey.MatchString(key)
}

// TrimBuildNumber strips the build number from a result key:
// "PROJ-PLAN-123" -> "PROJ-PLAN".
func TrimBuildNumber(resultKey string) string {
	parts := strings.Split(resultKey, "-")
	if len(parts) < 2 {
		return resultKey
	}
	return parts[0] + "-" + parts[1]
}

// EmailLocalPart extracts "ivan" from "Ivan Petrov <ivan@example.com>".
func EmailLocalPart(author string) string {
	m := reMailLocal.FindStringSubmatch(author)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
