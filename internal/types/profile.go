// Package types provides type definitions for structured data used throughout the soul-spirits system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "slices"

// AgeGroup is the generation tag selected on the profile form.
type AgeGroup string

// Age group tags. AgeGroupUnderage is reserved and never reaches generation.
const (
	AgeGroupUnderage        AgeGroup = "underage"
	AgeGroupGenZ            AgeGroup = "Gen Z (Ages 21-25)"
	AgeGroupZennial         AgeGroup = "Zennial (Ages 26-30)"
	AgeGroupCoreMillennial  AgeGroup = "Core Millennial (Ages 31-35)"
	AgeGroupElderMillennial AgeGroup = "Elder Millennial (Ages 36-44)"
	AgeGroupGenX            AgeGroup = "Gen X (Ages 45-60)"
	AgeGroupBoomer          AgeGroup = "Boomer (Ages 61+)"
)

// AgeGroupOption pairs an age group tag with the label shown on the form.
type AgeGroupOption struct {
	Label string   `json:"label"`
	Value AgeGroup `json:"value"`
}

// AgeGroupOptions lists the selectable age groups in display order.
var AgeGroupOptions = []AgeGroupOption{
	{Label: "Born 2004 or later (Under 21)", Value: AgeGroupUnderage},
	{Label: "Gen Z (Born 2000 - 2003)", Value: AgeGroupGenZ},
	{Label: "Zennial / Late Millennial (1995 - 1999)", Value: AgeGroupZennial},
	{Label: "Core Millennial (1990 - 1994)", Value: AgeGroupCoreMillennial},
	{Label: "Elder Millennial (1981 - 1989)", Value: AgeGroupElderMillennial},
	{Label: "Gen X (1965 - 1980)", Value: AgeGroupGenX},
	{Label: "Boomer & Beyond (Born 1964 or earlier)", Value: AgeGroupBoomer},
}

// MBTITypes are the sixteen Myers-Briggs codes accepted on a profile.
var MBTITypes = []string{
	"ENFJ", "ENFP", "ENTJ", "ENTP",
	"ESFJ", "ESFP", "ESTJ", "ESTP",
	"INFJ", "INFP", "INTJ", "INTP",
	"ISFJ", "ISFP", "ISTJ", "ISTP",
}

// ZodiacSigns are the twelve signs accepted on a profile.
var ZodiacSigns = []string{
	"Capricorn", "Aquarius", "Pisces", "Aries",
	"Taurus", "Gemini", "Cancer", "Leo",
	"Virgo", "Libra", "Scorpio", "Sagittarius",
}

// UserProfile is the self-description a cocktail is personalised for.
// It is passed by value; a resubmission produces a new value.
type UserProfile struct {
	Name        string   `json:"name" validate:"nonblank"`
	AgeGroup    AgeGroup `json:"ageGroup" validate:"required,agegroup"`
	MBTI        string   `json:"mbti" validate:"required,mbti"`
	Zodiac      string   `json:"zodiac" validate:"required,zodiac"`
	Mood        string   `json:"mood" validate:"nonblank"`
	Preferences string   `json:"preferences"`
}

// IsKnownAgeGroup reports whether g is one of the fixed age group tags.
func IsKnownAgeGroup(g AgeGroup) bool {
	for _, opt := range AgeGroupOptions {
		if opt.Value == g {
			return true
		}
	}
	return false
}

// IsKnownMBTI reports whether code is one of the sixteen MBTI codes.
func IsKnownMBTI(code string) bool {
	return slices.Contains(MBTITypes, code)
}

// IsKnownZodiac reports whether sign is one of the twelve zodiac signs.
func IsKnownZodiac(sign string) bool {
	return slices.Contains(ZodiacSigns, sign)
}
