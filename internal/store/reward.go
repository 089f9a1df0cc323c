package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

const rewardCols = `id, family_id, name, description, cost, requires_approval, cooldown_days, created_at, updated_at`

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	err := scanner.Scan(&r.ID, &r.FamilyID, &r.Name, &r.Description, &r.Cost, &r.RequiresApproval, &r.CooldownDays, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func validateReward(name string, cost, cooldownDays int) error {
	if name == "" {
		return &points.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if cost <= 0 {
		return &points.ValidationError{Field: "cost", Reason: "must be positive"}
	}
	if cooldownDays < 0 {
		return &points.ValidationError{Field: "cooldown_days", Reason: "must not be negative"}
	}
	return nil
}

func (s *RewardStore) Create(familyID int64, name, description string, cost int, requiresApproval bool, cooldownDays int) (*model.Reward, error) {
	if err := validateReward(name, cost, cooldownDays); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO rewards (family_id, name, description, cost, requires_approval, cooldown_days) VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, name, description, cost, requiresApproval, cooldownDays,
	)
	if err != nil {
		return nil, lockErr("insert reward", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(id)
}

func (s *RewardStore) Get(id int64) (*model.Reward, error) {
	r, err := scanReward(s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListByFamily(familyID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT `+rewardCols+` FROM rewards WHERE family_id = ? ORDER BY cost`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, name, description string, cost int, requiresApproval bool, cooldownDays int) (*model.Reward, error) {
	if err := validateReward(name, cost, cooldownDays); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE rewards SET name = ?, description = ?, cost = ?, requires_approval = ?, cooldown_days = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, cost, requiresApproval, cooldownDays, id,
	)
	if err != nil {
		return nil, lockErr("update reward", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("reward %d: %w", id, points.ErrNotFound)
	}
	return s.Get(id)
}

// Delete removes a reward that has never been redeemed. Rewards with purchase
// or request history are load-bearing for the committed total and cannot go.
func (s *RewardStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("reward %d has redemption history: %w", id, points.ErrConflict)
		}
		return lockErr("delete reward", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("reward %d: %w", id, points.ErrNotFound)
	}
	return nil
}
