package pricing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Variant is the collection-side printing of a card
type Variant string

const (
	VariantNormal           Variant = "normal"
	VariantHolo             Variant = "holo"
	VariantReverseHolo      Variant = "reverse_holo"
	VariantFirstEdition     Variant = "first_edition"
	VariantIllustrationRare Variant = "illustration_rare"
	VariantAltArt           Variant = "alt_art"
	VariantFullArt          Variant = "full_art"
	VariantSecretRare       Variant = "secret_rare"
	VariantOther            Variant = "other"
)

// AllVariants returns every collection variant
func AllVariants() []Variant {
	return []Variant{
		VariantNormal,
		VariantHolo,
		VariantReverseHolo,
		VariantFirstEdition,
		VariantIllustrationRare,
		VariantAltArt,
		VariantFullArt,
		VariantSecretRare,
		VariantOther,
	}
}

// Valid reports whether v is one of the known collection variants
func (v Variant) Valid() bool {
	for _, known := range AllVariants() {
		if v == known {
			return true
		}
	}
	return false
}

// Condition is the collection-side physical condition of an ungraded card
type Condition string

const (
	ConditionMint             Condition = "mint"
	ConditionNearMint         Condition = "near_mint"
	ConditionLightlyPlayed    Condition = "lightly_played"
	ConditionModeratelyPlayed Condition = "moderately_played"
	ConditionHeavilyPlayed    Condition = "heavily_played"
	ConditionDamaged          Condition = "damaged"
)

// AllConditions returns every collection condition
func AllConditions() []Condition {
	return []Condition{
		ConditionMint,
		ConditionNearMint,
		ConditionLightlyPlayed,
		ConditionModeratelyPlayed,
		ConditionHeavilyPlayed,
		ConditionDamaged,
	}
}

// Valid reports whether c is one of the known collection conditions
func (c Condition) Valid() bool {
	for _, known := range AllConditions() {
		if c == known {
			return true
		}
	}
	return false
}

// PriceVariant is a variant name as used by the pricing feed
type PriceVariant string

const (
	PriceVariantNormal               PriceVariant = "Normal"
	PriceVariantHolofoil             PriceVariant = "Holofoil"
	PriceVariantReverseHolofoil      PriceVariant = "Reverse Holofoil"
	PriceVariantFirstEditionHolofoil PriceVariant = "1st Edition Holofoil"
)

// PriceCondition is a condition name as used by the pricing feed
type PriceCondition string

const (
	PriceConditionNearMint         PriceCondition = "Near Mint"
	PriceConditionLightlyPlayed    PriceCondition = "Lightly Played"
	PriceConditionModeratelyPlayed PriceCondition = "Moderately Played"
	PriceConditionHeavilyPlayed    PriceCondition = "Heavily Played"
	PriceConditionDamaged          PriceCondition = "Damaged"
)

// MapVariant maps a collection variant to the feed's variant key.
// Special rarities are always priced under the holofoil listing.
func MapVariant(v Variant) PriceVariant {
	switch v {
	case VariantHolo:
		return PriceVariantHolofoil
	case VariantReverseHolo:
		return PriceVariantReverseHolofoil
	case VariantFirstEdition:
		return PriceVariantFirstEditionHolofoil
	case VariantIllustrationRare, VariantAltArt, VariantFullArt, VariantSecretRare:
		return PriceVariantHolofoil
	case VariantNormal, VariantOther:
		return PriceVariantNormal
	default:
		return PriceVariantNormal
	}
}

// MapCondition maps a collection condition to the feed's condition key.
// The second return is false when the condition is not one we know.
func MapCondition(c Condition) (PriceCondition, bool) {
	switch c {
	case ConditionMint, ConditionNearMint:
		return PriceConditionNearMint, true
	case ConditionLightlyPlayed:
		return PriceConditionLightlyPlayed, true
	case ConditionModeratelyPlayed:
		return PriceConditionModeratelyPlayed, true
	case ConditionHeavilyPlayed:
		return PriceConditionHeavilyPlayed, true
	case ConditionDamaged:
		return PriceConditionDamaged, true
	default:
		return "", false
	}
}

var patternLabels = map[string]string{
	"poke_ball":   "Poké Ball",
	"pokeball":    "Poké Ball",
	"master_ball": "Master Ball",
	"masterball":  "Master Ball",
}

var titleCaser = cases.Title(language.English)

// SanitizePattern strips markup characters, trims and length-caps a raw
// variant pattern from the feed.
func SanitizePattern(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimSpace(cleaned)
	if runes := []rune(cleaned); len(runes) > MaxPatternLen {
		cleaned = strings.TrimSpace(string(runes[:MaxPatternLen]))
	}
	return cleaned
}

// PatternLabel turns a pattern key such as "poke_ball" into "Poké Ball".
// Returns "" for the base card.
func PatternLabel(pattern string) string {
	p := SanitizePattern(pattern)
	if p == "" || strings.EqualFold(p, BasePattern) {
		return ""
	}
	if label, ok := patternLabels[strings.ToLower(p)]; ok {
		return label
	}
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(p))
	return titleCaser.String(strings.Join(words, " "))
}

// VariantKey builds the display key for a sub-type under a pattern,
// e.g. "Reverse Holofoil (Poké Ball)".
func VariantKey(subTypeName, pattern string) string {
	label := PatternLabel(pattern)
	if label == "" {
		return subTypeName
	}
	return subTypeName + " (" + label + ")"
}

// IsBasePattern reports whether pattern refers to the unstamped card
func IsBasePattern(pattern *string) bool {
	return pattern == nil || *pattern == "" || *pattern == BasePattern
}

// ClassifyPattern derives a variant pattern from a product name such as
// "Pikachu (Master Ball Pattern)". Unrecognized names are the base card.
func ClassifyPattern(productName string) string {
	name := strings.ToLower(productName)
	switch {
	case strings.Contains(name, "master ball"):
		return "master_ball"
	case strings.Contains(name, "poke ball"), strings.Contains(name, "poké ball"), strings.Contains(name, "pokeball"):
		return "poke_ball"
	default:
		return BasePattern
	}
}
