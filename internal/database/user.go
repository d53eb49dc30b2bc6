package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fourrow/server/internal/auth"
	"github.com/fourrow/server/internal/models"
)

// CreateUser hashes the password, mints an id if missing and inserts
// the user.
func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		id, err := models.NewUserID()
		if err != nil {
			return fmt.Errorf("failed to mint user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password, auth.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (id, username, email, password)
	      VALUES ($1, $2, $3, $4)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, user.ID, user.Username, user.Email, user.Password)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, email, password, created_at
	FROM users
	WHERE email=$1
	`
	err := DB.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, email, password, created_at
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SearchUsers finds users whose username contains the query,
// case-insensitively, capped at limit rows.
func SearchUsers(ctx context.Context, query string, limit int) ([]models.UserInfo, error) {
	q := `
	SELECT id, username
	FROM users
	WHERE username ILIKE '%' || $1 || '%'
	ORDER BY username
	LIMIT $2
	`
	rows, err := DB.Query(ctx, q, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []models.UserInfo
	for rows.Next() {
		var info models.UserInfo
		if err := rows.Scan(&info.ID, &info.Username); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// AuthenticateUser checks credentials and returns a signed JWT.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil || !match {
		return "", errors.New("invalid credentials")
	}

	token, err := auth.CreateToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}
	return token, nil
}
