package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// Текст первой записи в истории статусов нового заказа.
const initialOrderStatus = "Arrived"

// CreateOrder сохраняет заказ целиком: шапку с серверной датой, позиции со
// снапшотом каталога и начальный статус — в одной транзакции. Цена каждой
// позиции сверяется с актуальной ценой каталога, итоговая сумма — с суммой
// позиций; любое расхождение откатывает транзакцию целиком.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID int64, draft model.OrderDraft) (int64, error) {
	var orderID int64
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Дата заказа всегда генерируется на сервере
		date := time.Now()

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, cost, apartment, street, city, payment, date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING order_id`,
			userID, draft.Cost, draft.Apartment, draft.Street, draft.City, draft.Payment, date,
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		var total int64
		for _, line := range draft.Lines {
			var (
				name  string
				cost  int64
				image string
			)
			err := tx.QueryRow(ctx,
				`SELECT name, cost, image FROM items WHERE item_id = $1`,
				line.ItemID,
			).Scan(&name, &cost, &image)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: %d", ErrItemNotFound, line.ItemID)
				}
				return fmt.Errorf("select item: %w", err)
			}

			if cost != line.Cost {
				return fmt.Errorf("%w: item %d", ErrPriceMismatch, line.ItemID)
			}

			total += cost * int64(line.Quantity)

			_, err = tx.Exec(ctx,
				`INSERT INTO order_items (order_id, item_id, name, cost, quantity, image)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				orderID, line.ItemID, name, cost, line.Quantity, image,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if total != draft.Cost {
			return ErrTotalMismatch
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO order_status (order_id, date, text) VALUES ($1, $2, $3)`,
			orderID, date, initialOrderStatus,
		)
		if err != nil {
			return fmt.Errorf("insert order status: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

// orderLines возвращает позиции заказа: замороженный снапшот (name, cost,
// image) вместе с текущими полями каталога (description, rating, tags,
// review_amount).
func (r *PostgresRepository) orderLines(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT oi.item_id, oi.name, oi.cost, oi.image, oi.quantity,
		        i.description, i.rating, i.tags, i.review_amount
		 FROM order_items oi
		 JOIN items i ON oi.item_id = i.item_id
		 WHERE oi.order_id = $1
		 ORDER BY oi.order_item_id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var lines []model.OrderLine
	for rows.Next() {
		var line model.OrderLine
		err := rows.Scan(
			&line.Item.ID, &line.Item.Name, &line.Item.Cost, &line.Item.Image, &line.Quantity,
			&line.Item.Description, &line.Item.Rating, &line.Item.Tags, &line.Item.ReviewAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

const orderColumns = `order_id, user_id, cost, apartment, street, city, payment, date`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Cost, &o.Apartment, &o.Street, &o.City, &o.Payment, &o.Date)
	return o, err
}

// GetOrder возвращает заказ с позициями. Принадлежность заказа пользователю
// проверяется предикатом запроса, а не фильтрацией результата.
func (r *PostgresRepository) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1 AND user_id = $2`,
		orderID, userID,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o.Lines, err = r.orderLines(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	return &o, nil
}

// GetOrdersByUser возвращает все заказы пользователя с позициями, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY date DESC, order_id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		orders[i].Lines, err = r.orderLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// GetStatuses возвращает историю статусов заказа, новые первыми.
// Заказ должен принадлежать указанному пользователю.
func (r *PostgresRepository) GetStatuses(ctx context.Context, userID, orderID int64) ([]model.OrderStatus, error) {
	var dummy int64
	err := r.pool.QueryRow(ctx,
		`SELECT order_id FROM orders WHERE order_id = $1 AND user_id = $2`,
		orderID, userID,
	).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("check order owner: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT status_id, order_id, date, text
		 FROM order_status
		 WHERE order_id = $1
		 ORDER BY date DESC, status_id DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select statuses: %w", err)
	}
	defer rows.Close()

	var statuses []model.OrderStatus
	for rows.Next() {
		var st model.OrderStatus
		if err := rows.Scan(&st.ID, &st.OrderID, &st.Date, &st.Text); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return statuses, nil
}
