// Package model содержит доменные сущности сервиса витрины.
package model

import "time"

// Все денежные суммы хранятся и передаются в минорных единицах валюты
// (грошах), поэтому сравнение цен и итоговых сумм всегда точное.

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	City         string    `json:"city"`
	Street       string    `json:"street"`
	Apartment    string    `json:"apartment"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Item описывает товар каталога. Поля Rating и ReviewAmount обновляются
// только агрегатором рецензий: rating — округлённое до двух знаков среднее
// всех оценок, ноль при отсутствии рецензий.
type Item struct {
	ID           int64    `json:"item_id"`
	Name         string   `json:"name"`
	Cost         int64    `json:"cost"`
	Image        string   `json:"image"`
	Description  string   `json:"description"`
	Rating       float64  `json:"rating"`
	Tags         []string `json:"tags"`
	ReviewAmount int      `json:"review_amount"`
}

// Review описывает рецензию пользователя на товар. На пару
// (пользователь, товар) существует не более одной рецензии.
type Review struct {
	ID       int64     `json:"review_id"`
	UserID   int64     `json:"user_id"`
	ItemID   int64     `json:"item_id"`
	Text     string    `json:"text"`
	Rate     int       `json:"rate"`
	Username string    `json:"username"`
	Date     time.Time `json:"date"`
}

// Поддерживаемые способы оплаты заказа.
const (
	PaymentCard = "card"
	PaymentBlik = "blik"
)

// OrderLine — позиция заказа. Name, Cost и Image зафиксированы на момент
// оформления, остальные поля Item отражают текущее состояние каталога.
type OrderLine struct {
	Item     Item `json:"item"`
	Quantity int  `json:"quantity"`
}

// Order описывает оформленный заказ. После создания заказ неизменяем,
// к нему лишь дописывается история статусов.
type Order struct {
	ID        int64       `json:"order_id"`
	UserID    int64       `json:"user_id"`
	Cost      int64       `json:"cost"`
	Apartment string      `json:"apartment"`
	Street    string      `json:"street"`
	City      string      `json:"city"`
	Payment   string      `json:"payment"`
	Date      time.Time   `json:"date"`
	Lines     []OrderLine `json:"items"`
}

// OrderStatus — запись истории статусов заказа. Записи только добавляются.
type OrderStatus struct {
	ID      int64     `json:"status_id"`
	OrderID int64     `json:"order_id"`
	Date    time.Time `json:"date"`
	Text    string    `json:"text"`
}

// OrderDraft описывает заказ в том виде, в каком его прислал клиент.
// Cost и цены позиций проверяются по каталогу при оформлении.
type OrderDraft struct {
	Apartment string
	Street    string
	City      string
	Payment   string
	Cost      int64
	Lines     []DraftLine
}

// DraftLine — присланная клиентом позиция заказа с ценой на момент
// добавления в корзину.
type DraftLine struct {
	ItemID   int64
	Cost     int64
	Quantity int
}
