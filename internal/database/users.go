package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = ` id, email, hashed_password, full_name, role, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.CreatedAt)
	return u, err
}

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING`+userColumns,
		arg.Email, arg.HashedPassword, arg.FullName, arg.Role,
	)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, `SELECT`+userColumns+` FROM users ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
