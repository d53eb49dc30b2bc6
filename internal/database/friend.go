// internal/database/friend.go

package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fourrow/server/internal/models"
)

// InsertFriendRequest inserts a row into the friends table with
// status='pending'. user1 is the requester.
func InsertFriendRequest(ctx context.Context, user1, user2 string) error {
	q := `
		INSERT INTO friends (user1_id, user2_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (user1_id, user2_id)
		DO UPDATE SET status='pending', updated_at=NOW()
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, user1, user2)
		return err
	})
}

// AcceptFriend sets status='accepted' for a pending request from
// user1 to user2.
func AcceptFriend(ctx context.Context, user1, user2 string) error {
	q := `
		UPDATE friends
		SET status='accepted', updated_at=NOW()
		WHERE user1_id=$1 AND user2_id=$2 AND status='pending'
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, q, user1, user2)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("no pending friend request found from %v to %v", user1, user2)
		}
		return nil
	})
}

// ListFriends returns all friend relationships involving the user,
// pending and accepted alike.
func ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	q := `
		SELECT user1_id, user2_id, status, updated_at
		FROM friends
		WHERE user1_id=$1 OR user2_id=$1
	`
	rows, err := DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fs []models.Friend
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.User1ID, &f.User2ID, &f.Status, &f.Updated); err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return fs, rows.Err()
}

// AreFriends reports whether an accepted relation exists between the
// two users in either direction.
func AreFriends(ctx context.Context, user1, user2 string) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM friends
			WHERE status='accepted'
			  AND ((user1_id=$1 AND user2_id=$2) OR (user1_id=$2 AND user2_id=$1))
		)
	`
	var ok bool
	if err := DB.QueryRow(ctx, q, user1, user2).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// RemoveFriend hard deletes the relation in both directions.
func RemoveFriend(ctx context.Context, user1, user2 string) error {
	q := `
		DELETE FROM friends
		WHERE (user1_id=$1 AND user2_id=$2)
		   OR (user1_id=$2 AND user2_id=$1)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, user1, user2)
		return err
	})
}
