package loyalty

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// AccrueTx upserts the account, adds points to both balance and lifetime
// total, and recomputes the tier from the new lifetime total.
func AccrueTx(ctx context.Context, tx pgx.Tx, userID string, points int64) error {
	if points < 0 {
		return fmt.Errorf("cannot accrue negative points: %d", points)
	}
	var totalEarned int64
	err := tx.QueryRow(ctx, `
		INSERT INTO loyalty_points(user_id, current_points, total_earned, current_tier)
		VALUES ($1,$2,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET
			current_points = loyalty_points.current_points + EXCLUDED.current_points,
			total_earned   = loyalty_points.total_earned + EXCLUDED.total_earned,
			updated_at     = now()
		RETURNING total_earned`,
		userID, points, string(TierFor(points))).Scan(&totalEarned)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE loyalty_points SET current_tier=$2 WHERE user_id=$1`,
		userID, string(TierFor(totalEarned)))
	return err
}

func (r *Repo) Get(ctx context.Context, userID string) (Account, error) {
	var a Account
	var tier string
	err := r.DB.QueryRow(ctx, `
		SELECT user_id, current_points, total_earned, current_tier, updated_at
		FROM loyalty_points WHERE user_id=$1`, userID).
		Scan(&a.UserID, &a.CurrentPoints, &a.TotalEarned, &tier, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.CurrentTier = Tier(tier)
	return a, nil
}

// Spend draws down the balance only; lifetime total and tier are untouched.
func (r *Repo) Spend(ctx context.Context, userID string, points int64) error {
	if points <= 0 {
		return fmt.Errorf("spend amount must be positive: %d", points)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE loyalty_points
		SET current_points = current_points - $2, updated_at = now()
		WHERE user_id=$1 AND current_points >= $2`, userID, points)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("insufficient points for user %s", userID)
	}
	return nil
}
