package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wuwenbin0122/finbot/internal/models"
)

const profileColumns = "user_id, persona, age, income, goals, display_name, avatar_data_url, country, currency, locale, risk_tolerance, time_horizon, updated_at"

func (p *Postgres) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var (
		profile models.UserProfile
		persona string
		income  string
	)
	err := p.Pool.QueryRow(ctx, "SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID).Scan(
		&profile.UserID,
		&persona,
		&profile.Age,
		&income,
		&profile.Goals,
		&profile.DisplayName,
		&profile.AvatarDataURL,
		&profile.Country,
		&profile.Currency,
		&profile.Locale,
		&profile.RiskTolerance,
		&profile.TimeHorizon,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get profile: %w", err)
	}
	profile.Persona = models.Persona(persona)
	profile.Income = models.IncomeRange(income)
	return &profile, nil
}

// SaveProfile upserts the profile of profile.UserID.
func (p *Postgres) SaveProfile(ctx context.Context, profile models.UserProfile) error {
	_, err := p.Pool.Exec(ctx, `
INSERT INTO profiles (`+profileColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
ON CONFLICT (user_id) DO UPDATE SET
    persona = EXCLUDED.persona,
    age = EXCLUDED.age,
    income = EXCLUDED.income,
    goals = EXCLUDED.goals,
    display_name = EXCLUDED.display_name,
    avatar_data_url = EXCLUDED.avatar_data_url,
    country = EXCLUDED.country,
    currency = EXCLUDED.currency,
    locale = EXCLUDED.locale,
    risk_tolerance = EXCLUDED.risk_tolerance,
    time_horizon = EXCLUDED.time_horizon,
    updated_at = NOW()`,
		profile.UserID,
		string(profile.Persona),
		profile.Age,
		string(profile.Income),
		profile.Goals,
		profile.DisplayName,
		profile.AvatarDataURL,
		profile.Country,
		profile.Currency,
		profile.Locale,
		profile.RiskTolerance,
		profile.TimeHorizon,
	)
	if err != nil {
		return fmt.Errorf("postgres: save profile: %w", err)
	}
	return nil
}

// EnsureProfile creates the default profile for userID unless one exists.
// It reports whether a row was created.
func (p *Postgres) EnsureProfile(ctx context.Context, userID string) (bool, error) {
	def := models.DefaultProfile()
	tag, err := p.Pool.Exec(ctx,
		"INSERT INTO profiles (user_id, persona, risk_tolerance) VALUES ($1, $2, $3) ON CONFLICT (user_id) DO NOTHING",
		userID, string(def.Persona), def.RiskTolerance,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: ensure profile: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
