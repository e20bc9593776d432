// internal/consultation/validator.go
package consultation

import (
	"strings"
	"unicode/utf8"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/textsim"
)

const (
	// minResponseRunes is the floor below which a response cannot carry
	// substance.
	minResponseRunes = 20

	// boilerplateMaxRunes is the ceiling under which a referral-only answer
	// counts as having no substantive content.
	boilerplateMaxRunes = 60

	// DefaultDuplicateThreshold is the bigram-Jaccard similarity at which a
	// response is treated as a near-duplicate of an already-accepted one.
	DefaultDuplicateThreshold = 0.7
)

// noExperiencePhrases mark an answer as valid but excluded from consensus
// weighting.
var noExperiencePhrases = []string{
	"no relevant experience",
	"no personal experience",
	"haven't experienced",
	"have not experienced",
	"never dealt with",
	"can't speak to this",
	"cannot speak to this",
}

// referralPhrases are boilerplate deflections that carry no substance on
// their own.
var referralPhrases = []string{
	"see a doctor",
	"consult a doctor",
	"consult your doctor",
	"talk to your doctor",
	"seek medical attention",
	"see a professional",
}

// Classification is the validator's verdict on one raw response text.
type Classification struct {
	Valid        bool
	NoExperience bool
	// Reason is set only when Valid is false.
	Reason errors.ErrorCode
}

// Validator classifies raw response texts. It is a pure function over the
// text and the set of already-accepted texts in the same round.
type Validator struct {
	duplicateThreshold float64
}

// NewValidator creates a Validator. A non-positive threshold falls back to
// the default.
func NewValidator(duplicateThreshold float64) *Validator {
	if duplicateThreshold <= 0 {
		duplicateThreshold = DefaultDuplicateThreshold
	}
	return &Validator{duplicateThreshold: duplicateThreshold}
}

// Classify applies the validation rules in order: length floor,
// no-experience phrases, boilerplate referral, near-duplicate suppression.
// accepted holds the texts already counted valid in the same round.
func (v *Validator) Classify(text string, accepted []string) Classification {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if utf8.RuneCountInString(trimmed) < minResponseRunes {
		return Classification{Reason: errors.ErrCodeResponseTooShort}
	}

	for _, phrase := range noExperiencePhrases {
		if strings.Contains(lower, phrase) {
			return Classification{Valid: true, NoExperience: true}
		}
	}

	if utf8.RuneCountInString(trimmed) < boilerplateMaxRunes {
		for _, phrase := range referralPhrases {
			if strings.Contains(lower, phrase) {
				return Classification{Reason: errors.ErrCodeNoSubstantiveContent}
			}
		}
	}

	bigrams := textsim.Bigrams(trimmed)
	for _, prior := range accepted {
		if textsim.Jaccard(bigrams, textsim.Bigrams(prior)) >= v.duplicateThreshold {
			return Classification{Reason: errors.ErrCodeDuplicateResponse}
		}
	}

	return Classification{Valid: true}
}
