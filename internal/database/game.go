// internal/database/game.go

package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fourrow/server/internal/models"
)

// RecordPlayedGame persists the outcome of a ranked match.
func RecordPlayedGame(ctx context.Context, g *models.PlayedGame) error {
	if g.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate game id: %w", err)
		}
		g.ID = id
	}

	q := `INSERT INTO played_games (id, winner_id, loser_id, finished_at)
	      VALUES ($1, $2, $3, $4)`

	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, g.ID, g.WinnerID, g.LoserID, g.FinishedAt)
		return err
	})
}

// ListPlayedGames returns the user's most recent games, newest first.
func ListPlayedGames(ctx context.Context, userID string, limit int) ([]models.PlayedGame, error) {
	q := `
		SELECT id, winner_id, loser_id, finished_at
		FROM played_games
		WHERE winner_id=$1 OR loser_id=$1
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := DB.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gs []models.PlayedGame
	for rows.Next() {
		var g models.PlayedGame
		if err := rows.Scan(&g.ID, &g.WinnerID, &g.LoserID, &g.FinishedAt); err != nil {
			return nil, err
		}
		gs = append(gs, g)
	}
	return gs, rows.Err()
}
