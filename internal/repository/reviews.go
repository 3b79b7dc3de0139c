package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ReviewsPageSize — размер страницы при листинге рецензий.
const ReviewsPageSize = 4

// lockItem блокирует строку товара на время транзакции. Параллельные мутации
// рецензий одного товара сериализуются на этой блокировке, поэтому каждый
// последующий пересчёт агрегатов видит уже зафиксированные рецензии.
func lockItem(ctx context.Context, tx pgx.Tx, itemID int64) error {
	var dummy int
	err := tx.QueryRow(ctx, `SELECT 1 FROM items WHERE item_id = $1 FOR UPDATE`, itemID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return fmt.Errorf("lock item for update: %w", err)
	}
	return nil
}

// recomputeItemRating пересчитывает средний рейтинг и количество рецензий
// товара по всем сохранившимся рецензиям. Вызывается внутри той же
// транзакции, что и мутация рецензии, после lockItem; при нуле рецензий
// рейтинг сбрасывается в ноль.
func recomputeItemRating(ctx context.Context, tx pgx.Tx, itemID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE items
		 SET rating = COALESCE((SELECT ROUND(AVG(rate)::numeric, 2) FROM reviews WHERE item_id = $1), 0),
		     review_amount = (SELECT COUNT(*) FROM reviews WHERE item_id = $1)
		 WHERE item_id = $1`,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("recompute rating: %w", err)
	}
	return nil
}

// CreateReview сохраняет рецензию и пересчитывает агрегаты товара в одной
// транзакции под блокировкой строки товара. Гонка одновременных отправок
// одной пары закрывается уникальным ограничением (user_id, item_id) на уровне БД.
func (r *PostgresRepository) CreateReview(ctx context.Context, review model.Review) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockItem(ctx, tx, review.ItemID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO reviews (user_id, item_id, text, rate, date)
			 VALUES ($1, $2, $3, $4, $5)`,
			review.UserID, review.ItemID, review.Text, review.Rate, review.Date,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return ErrReviewExists
			}
			return fmt.Errorf("insert review: %w", err)
		}

		if err := recomputeItemRating(ctx, tx, review.ItemID); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// UpdateReview обновляет существующую рецензию пользователя на товар и
// пересчитывает агрегаты товара в одной транзакции.
func (r *PostgresRepository) UpdateReview(ctx context.Context, review model.Review) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockItem(ctx, tx, review.ItemID); err != nil {
			return err
		}

		cmdTag, err := tx.Exec(ctx,
			`UPDATE reviews SET text = $3, rate = $4, date = $5
			 WHERE user_id = $1 AND item_id = $2`,
			review.UserID, review.ItemID, review.Text, review.Rate, review.Date,
		)
		if err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrReviewNotFound
		}

		if err := recomputeItemRating(ctx, tx, review.ItemID); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// DeleteReview удаляет рецензию пользователя на товар и пересчитывает
// агрегаты товара в одной транзакции.
func (r *PostgresRepository) DeleteReview(ctx context.Context, userID, itemID int64) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockItem(ctx, tx, itemID); err != nil {
			return err
		}

		cmdTag, err := tx.Exec(ctx,
			`DELETE FROM reviews WHERE user_id = $1 AND item_id = $2`,
			userID, itemID,
		)
		if err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrReviewNotFound
		}

		if err := recomputeItemRating(ctx, tx, itemID); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

const reviewColumns = `r.review_id, r.user_id, r.item_id, r.text, r.rate, r.date, COALESCE(u.username, '')`

// Столбцы сортировки, разрешённые при листинге рецензий.
var reviewOrderColumns = map[string]string{
	"rate": "r.rate",
	"date": "r.date",
}

var reviewOrderDirections = map[string]string{
	"asc":  "ASC",
	"desc": "DESC",
}

func scanReview(row pgx.Row) (model.Review, error) {
	var rev model.Review
	err := row.Scan(&rev.ID, &rev.UserID, &rev.ItemID, &rev.Text, &rev.Rate, &rev.Date, &rev.Username)
	return rev, err
}

// ListReviews возвращает собственную рецензию запрашивающего пользователя
// (если он аутентифицирован и она есть) и страницу рецензий остальных
// пользователей, отсортированную по указанному столбцу с вторичным ключом
// review_id для детерминированной пагинации.
func (r *PostgresRepository) ListReviews(ctx context.Context, itemID int64, requester *int64, filter, sortOrder string, offset int) (*model.Review, []model.Review, error) {
	column, ok := reviewOrderColumns[filter]
	if !ok {
		return nil, nil, fmt.Errorf("invalid review filter: %s", filter)
	}
	direction, ok := reviewOrderDirections[sortOrder]
	if !ok {
		return nil, nil, fmt.Errorf("invalid review sort order: %s", sortOrder)
	}

	var userReview *model.Review
	if requester != nil {
		row := r.pool.QueryRow(ctx,
			`SELECT `+reviewColumns+`
			 FROM reviews r
			 LEFT JOIN users u ON r.user_id = u.user_id
			 WHERE r.item_id = $1 AND r.user_id = $2`,
			itemID, *requester,
		)
		rev, err := scanReview(row)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("select user review: %w", err)
		}
		if err == nil {
			userReview = &rev
		}
	}

	query := `SELECT ` + reviewColumns + `
		 FROM reviews r
		 LEFT JOIN users u ON r.user_id = u.user_id
		 WHERE r.item_id = $1`
	args := []any{itemID, ReviewsPageSize, offset}
	if requester != nil {
		query += ` AND r.user_id <> $4`
		args = append(args, *requester)
	}
	query += fmt.Sprintf(` ORDER BY %s %s, r.review_id ASC LIMIT $2 OFFSET $3`, column, direction)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}

	return userReview, reviews, nil
}
