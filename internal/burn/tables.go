package burn

import "fmt"

// SkinType is a Fitzpatrick skin type.
type SkinType string

const (
	SkinTypeI   SkinType = "I"
	SkinTypeII  SkinType = "II"
	SkinTypeIII SkinType = "III"
	SkinTypeIV  SkinType = "IV"
	SkinTypeV   SkinType = "V"
	SkinTypeVI  SkinType = "VI"
)

type SkinTypeConfig struct {
	Subtitle    string
	Description string
	Coefficient float64 // MED = medPerCoefficient * Coefficient
}

var SkinTypes = map[SkinType]SkinTypeConfig{
	SkinTypeI:   {Subtitle: "Very Light", Description: "Burns easily, often has freckles", Coefficient: 2.5},
	SkinTypeII:  {Subtitle: "Light", Description: "Burns easily, tans minimally", Coefficient: 3.125},
	SkinTypeIII: {Subtitle: "Medium", Description: "Burns moderately, tans gradually", Coefficient: 4.375},
	SkinTypeIV:  {Subtitle: "Olive", Description: "Burns rarely, tans easily", Coefficient: 5.625},
	SkinTypeV:   {Subtitle: "Brown", Description: "Very rarely burns, tans deeply", Coefficient: 7.5},
	SkinTypeVI:  {Subtitle: "Very Dark", Description: "Almost never burns, naturally dark", Coefficient: 12.5},
}

// AllSkinTypes lists skin types from most to least sensitive.
var AllSkinTypes = []SkinType{SkinTypeI, SkinTypeII, SkinTypeIII, SkinTypeIV, SkinTypeV, SkinTypeVI}

// MED returns the minimal erythemal dose for the skin type in J/m².
// Unknown skin types get the most sensitive threshold.
func (s SkinType) MED() float64 {
	cfg, ok := SkinTypes[s]
	if !ok {
		cfg = SkinTypes[SkinTypeI]
	}
	return medPerCoefficient * cfg.Coefficient
}

type SPFLevel string

const (
	SPFNone   SPFLevel = "NONE"
	SPF15     SPFLevel = "SPF_15"
	SPF30     SPFLevel = "SPF_30"
	SPF50Plus SPFLevel = "SPF_50_PLUS"
)

type SPFConfig struct {
	Label       string
	Coefficient float64
}

var SPFLevels = map[SPFLevel]SPFConfig{
	SPFNone:   {Label: "None", Coefficient: 1},
	SPF15:     {Label: "SPF 15", Coefficient: 15},
	SPF30:     {Label: "SPF 30", Coefficient: 30},
	SPF50Plus: {Label: "SPF 50+", Coefficient: 50},
}

var AllSPFLevels = []SPFLevel{SPFNone, SPF15, SPF30, SPF50Plus}

// Factor returns the SPF divisor, 1 for unknown levels.
func (l SPFLevel) Factor() float64 {
	if cfg, ok := SPFLevels[l]; ok {
		return cfg.Coefficient
	}
	return 1
}

type SweatLevel string

const (
	SweatLow    SweatLevel = "LOW"
	SweatMedium SweatLevel = "MEDIUM"
	SweatHigh   SweatLevel = "HIGH"
)

// SweatProfile describes when sunscreen starts wearing off and how long it takes to be gone.
// A zero DurationHours means the sunscreen never wears off.
type SweatProfile struct {
	Label         string
	StartHours    float64
	DurationHours float64
}

var SweatLevels = map[SweatLevel]SweatProfile{
	SweatLow:    {Label: "None", StartHours: 0, DurationHours: 0},
	SweatMedium: {Label: "Some", StartHours: 2, DurationHours: 12},
	SweatHigh:   {Label: "Profuse", StartHours: 1, DurationHours: 6},
}

var AllSweatLevels = []SweatLevel{SweatLow, SweatMedium, SweatHigh}

// Profile returns the decay profile, treating unknown levels as no sweat.
func (l SweatLevel) Profile() SweatProfile {
	if p, ok := SweatLevels[l]; ok {
		return p
	}
	return SweatLevels[SweatLow]
}

func ParseSkinType(s string) (SkinType, error) {
	st := SkinType(s)
	if _, ok := SkinTypes[st]; !ok {
		return "", fmt.Errorf("unknown skin type %q", s)
	}
	return st, nil
}

func ParseSPFLevel(s string) (SPFLevel, error) {
	l := SPFLevel(s)
	if _, ok := SPFLevels[l]; !ok {
		return "", fmt.Errorf("unknown spf level %q", s)
	}
	return l, nil
}

func ParseSweatLevel(s string) (SweatLevel, error) {
	l := SweatLevel(s)
	if _, ok := SweatLevels[l]; !ok {
		return "", fmt.Errorf("unknown sweat level %q", s)
	}
	return l, nil
}
