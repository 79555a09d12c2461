package domain

import (
	"fmt"
	"strings"
)

// Onboarding stages. Stage 3 is operational and terminal.
const (
	StageBriefing    = 0
	StageKickoff     = 1
	StageEngagement  = 2
	StageOperational = 3
)

// Dimension keys of the 7-dimension self-assessment, in display order.
var Dimensions = []string{
	"tecnica",
	"venda",
	"comunicacao",
	"lideranca",
	"resiliencia",
	"organizacao",
	"mindset",
}

const (
	MinDimensionScore = 1
	MaxDimensionScore = 10
)

// Profile is the operator profile as returned by the remote API.
type Profile struct {
	ID                 string         `json:"id"`
	OnboardingStage    int            `json:"onboarding_step"`
	Email              string         `json:"email,omitempty"`
	FullName           string         `json:"full_name,omitempty"`
	Phone              string         `json:"phone,omitempty"`
	PixKey             string         `json:"pix_key,omitempty"`
	FinancialGoal      float64        `json:"financial_goal"`
	CurrentEarnings    float64        `json:"current_commission"`
	FamiliesSavedCount int            `json:"families_saved_count"`
	DimensionalScores  map[string]int `json:"heptagram_scores"`
	DreamDescription   string         `json:"dream_description,omitempty"`
	ProgressPercentage float64        `json:"progress_percentage"`
}

// Operational reports whether onboarding is finished.
func (p *Profile) Operational() bool {
	return p != nil && p.OnboardingStage >= StageOperational
}

// ProfileUpdate is the body for PUT /profiles/me. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName         *string  `json:"full_name,omitempty"`
	Phone            *string  `json:"phone,omitempty"`
	PixKey           *string  `json:"pix_key,omitempty"`
	FinancialGoal    *float64 `json:"financial_goal,omitempty"`
	DreamDescription *string  `json:"dream_description,omitempty"`
}

// BriefingForm is the Stage 0 submission.
type BriefingForm struct {
	FullName          string         `json:"full_name"`
	Phone             string         `json:"phone"`
	PixKey            string         `json:"pix_key"`
	FinancialGoal     float64        `json:"financial_goal"`
	DreamDescription  string         `json:"dream_description,omitempty"`
	DimensionalScores map[string]int `json:"heptagram_scores"`
}

// Validate checks the form before it is sent.
func (f *BriefingForm) Validate() error {
	if strings.TrimSpace(f.FullName) == "" {
		return &ErrValidation{Field: "full_name", Message: "Nome é obrigatório"}
	}
	if f.FinancialGoal <= 0 {
		return &ErrValidation{Field: "financial_goal", Message: "Meta financeira deve ser positiva"}
	}
	for _, key := range Dimensions {
		score, ok := f.DimensionalScores[key]
		if !ok {
			return &ErrValidation{Field: "heptagram_scores." + key, Message: "Dimensão não avaliada"}
		}
		if score < MinDimensionScore || score > MaxDimensionScore {
			return &ErrValidation{
				Field:   "heptagram_scores." + key,
				Message: fmt.Sprintf("Nota deve estar entre %d e %d", MinDimensionScore, MaxDimensionScore),
			}
		}
	}
	for key := range f.DimensionalScores {
		if !isDimension(key) {
			return &ErrValidation{Field: "heptagram_scores." + key, Message: "Dimensão desconhecida"}
		}
	}
	return nil
}

func isDimension(key string) bool {
	for _, d := range Dimensions {
		if d == key {
			return true
		}
	}
	return false
}

// DashboardStats is the aggregated operator report.
type DashboardStats struct {
	Operator           string         `json:"operador"`
	FamiliesSaved      int            `json:"familias_salvas"`
	CurrentEarnings    float64        `json:"comissao_atual"`
	FinancialGoal      float64        `json:"meta_financeira"`
	ProgressPercentage float64        `json:"progresso_percentual"`
	OnboardingStage    int            `json:"onboarding_step"`
	DimensionalScores  map[string]int `json:"heptagram_scores"`
}
