package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Persona selects the assistant's behavioural mode.
type Persona string

const (
	PersonaStudent      Persona = "Student"
	PersonaProfessional Persona = "Professional"
)

// Valid reports whether p is a known persona.
func (p Persona) Valid() bool {
	return p == PersonaStudent || p == PersonaProfessional
}

// IncomeRange is an annual income bracket as shown to the user.
type IncomeRange string

const (
	IncomeBelow30K   IncomeRange = "< ₹30,000"
	Income30KTo50K   IncomeRange = "₹30,000 - ₹50,000"
	Income50KTo100K  IncomeRange = "₹50,000 - ₹100,000"
	Income100KTo200K IncomeRange = "₹100,000 - ₹200,000"
	IncomeAbove200K  IncomeRange = "> ₹200,000"
)

var incomeRanges = []IncomeRange{IncomeBelow30K, Income30KTo50K, Income50KTo100K, Income100KTo200K, IncomeAbove200K}

// IncomeRanges lists the known brackets, lowest first.
func IncomeRanges() []IncomeRange {
	return append([]IncomeRange(nil), incomeRanges...)
}

const DefaultRiskTolerance = 3

var (
	ErrUnknownPersona     = errors.New("profile: unknown persona")
	ErrInvalidAge         = errors.New("profile: age must be a non-negative whole number")
	ErrUnknownIncomeRange = errors.New("profile: unknown income range")
	ErrInvalidRisk        = errors.New("profile: risk tolerance must be between 1 and 5")
)

// UserProfile holds the persona and demographic attributes of a user. Age is
// kept as text so that an unanswered field stays distinguishable from zero.
type UserProfile struct {
	UserID        string      `json:"-"`
	Persona       Persona     `json:"persona"`
	Age           string      `json:"age"`
	Income        IncomeRange `json:"income"`
	Goals         string      `json:"goals"`
	DisplayName   string      `json:"displayName,omitempty"`
	AvatarDataURL string      `json:"avatarDataUrl,omitempty"`
	Country       string      `json:"country,omitempty"`
	Currency      string      `json:"currency,omitempty"`
	Locale        string      `json:"locale,omitempty"`
	RiskTolerance int         `json:"riskTolerance,omitempty"`
	TimeHorizon   string      `json:"timeHorizon,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt,omitempty"`
}

// DefaultProfile is the profile created for a user who never saved one.
func DefaultProfile() UserProfile {
	return UserProfile{
		Persona:       PersonaStudent,
		RiskTolerance: DefaultRiskTolerance,
	}
}

// Normalize trims free-text fields and fills defaults for unset values.
func (p UserProfile) Normalize() UserProfile {
	p.Age = strings.TrimSpace(p.Age)
	p.Goals = strings.TrimSpace(p.Goals)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Country = strings.TrimSpace(p.Country)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Locale = strings.TrimSpace(p.Locale)
	if p.Persona == "" {
		p.Persona = PersonaStudent
	}
	if p.RiskTolerance == 0 {
		p.RiskTolerance = DefaultRiskTolerance
	}
	return p
}

func (p UserProfile) Validate() error {
	if !p.Persona.Valid() {
		return ErrUnknownPersona
	}
	if p.Age != "" {
		if n, err := strconv.Atoi(p.Age); err != nil || n < 0 {
			return ErrInvalidAge
		}
	}
	if p.Income != "" {
		known := false
		for _, r := range incomeRanges {
			if r == p.Income {
				known = true
				break
			}
		}
		if !known {
			return ErrUnknownIncomeRange
		}
	}
	if p.RiskTolerance < 1 || p.RiskTolerance > 5 {
		return ErrInvalidRisk
	}
	return nil
}
