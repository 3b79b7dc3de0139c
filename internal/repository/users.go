package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/storefront-system/internal/model"
)

const userColumns = `user_id, username, email, city, street, apartment, password_hash, created_at`

// CreateUser создаёт нового пользователя с пустым адресом.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, email string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, city, street, apartment, password_hash)
		 VALUES ($1, $2, '', '', '', $3) RETURNING user_id`,
		username, email, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return 0, fmt.Errorf("%w: %s", ErrEmailTaken, email)
			}
			return 0, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.City, &u.Street, &u.Apartment, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail возвращает пользователя по адресу электронной почты.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`,
		userID,
	)
	return scanUser(row)
}

// UpdateUserData обновляет адресные поля пользователя.
func (r *PostgresRepository) UpdateUserData(ctx context.Context, userID int64, street, apartment, city string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET street = $2, apartment = $3, city = $4 WHERE user_id = $1`,
		userID, street, apartment, city,
	)
	if err != nil {
		return fmt.Errorf("update user data: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserPassword сохраняет новый хеш пароля пользователя.
func (r *PostgresRepository) UpdateUserPassword(ctx context.Context, userID int64, passwordHash []byte) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE user_id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser удаляет пользователя вместе с его рецензиями и пересчитывает
// агрегаты всех затронутых товаров в одной транзакции.
func (r *PostgresRepository) DeleteUser(ctx context.Context, userID int64) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем затронутые товары в порядке item_id, чтобы пересчёт
		// агрегатов сериализовался с параллельными мутациями рецензий.
		rows, err := tx.Query(ctx,
			`SELECT item_id FROM items
			 WHERE item_id IN (SELECT item_id FROM reviews WHERE user_id = $1)
			 ORDER BY item_id
			 FOR UPDATE`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("lock reviewed items: %w", err)
		}

		var itemIDs []int64
		for rows.Next() {
			var itemID int64
			if err := rows.Scan(&itemID); err != nil {
				rows.Close()
				return fmt.Errorf("scan item id: %w", err)
			}
			itemIDs = append(itemIDs, itemID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete reviews: %w", err)
		}

		cmdTag, err := tx.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		for _, itemID := range itemIDs {
			if err := recomputeItemRating(ctx, tx, itemID); err != nil {
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}
