package repo

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lotto999/lotto-service/internal/model"
)

// OrderTicketRow is an order joined with its ticket, the shape the
// "my tickets" listing returns.
type OrderTicketRow struct {
	OrderID    uint64
	TicketID   uint64
	Number     string
	Price      decimal.Decimal
	State      model.SettlementState
	Rank       string
	Amount     int64
	PrizeEach  decimal.Decimal
	PrizeTotal decimal.Decimal
}

// TicketRankRow is a ticket joined with its assigned rank.
type TicketRankRow struct {
	TicketID uint64
	Number   string
	Rank     string
}

// CreateUser inserts a user row.
func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID fetches a user by id.
func (r *Repository) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UserExists reports whether a user id is registered.
func (r *Repository) UserExists(ctx context.Context, id uint64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateTicket inserts a ticket row.
func (r *Repository) CreateTicket(ctx context.Context, t *model.Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// GetTicket fetches a ticket by id.
func (r *Repository) GetTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTickets returns every ticket of the draw. It runs on the given handle
// so callers inside a transaction see their own snapshot.
func (r *Repository) ListTickets(ctx context.Context, db *gorm.DB) ([]model.Ticket, error) {
	var ts []model.Ticket
	err := db.WithContext(ctx).Order("id").Find(&ts).Error
	return ts, err
}

// ListAvailableTickets returns unsold tickets, optionally filtered by a
// number suffix.
func (r *Repository) ListAvailableTickets(ctx context.Context, suffix string) ([]model.Ticket, error) {
	q := r.db.WithContext(ctx).Where("status = ?", model.TicketStatusHave)
	if suffix != "" {
		q = q.Where("number LIKE ?", "%"+suffix)
	}
	var ts []model.Ticket
	err := q.Order("number").Find(&ts).Error
	return ts, err
}

// CreateOrder inserts an order row in the caller's transaction.
func (r *Repository) CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return tx.WithContext(ctx).Create(o).Error
}

// GetOrder fetches an order by id without locking.
func (r *Repository) GetOrder(ctx context.Context, id uint64) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderForUpdate locks an order row. Claiming serializes on this lock so
// a payout can happen at most once.
func (r *Repository) GetOrderForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Order, error) {
	var o model.Order
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrdersWithTickets joins a user's orders with their tickets.
func (r *Repository) ListOrdersWithTickets(ctx context.Context, userID uint64) ([]OrderTicketRow, error) {
	var rows []OrderTicketRow
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("orders.id AS order_id, orders.ticket_id, orders.amount, orders.state, orders.rank, orders.prize_each, orders.prize_total, tickets.number, tickets.price").
		Joins("JOIN tickets ON tickets.id = orders.ticket_id").
		Where("orders.user_id = ?", userID).
		Order("orders.id").
		Scan(&rows).Error
	return rows, err
}

// ListSettleableOrders returns a user's orders that can still change on a
// settlement pass, newest purchase first.
func (r *Repository) ListSettleableOrders(ctx context.Context, userID uint64) ([]model.Order, error) {
	var os []model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND state IN ?", userID,
			[]model.SettlementState{model.StateNotDrawn, model.StateWonPending}).
		Order("purchased_at DESC").
		Find(&os).Error
	return os, err
}

// ListPendingOrdersForUpdate locks and returns a user's won-pending orders.
func (r *Repository) ListPendingOrdersForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) ([]model.Order, error) {
	var os []model.Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND state = ?", userID, model.StateWonPending).
		Order("id").
		Find(&os).Error
	return os, err
}

// UpdateOrderSettlement persists the settlement columns of an order.
func (r *Repository) UpdateOrderSettlement(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", o.ID).
		Updates(map[string]interface{}{
			"state":       o.State,
			"rank":        o.Rank,
			"prize_each":  o.PrizeEach,
			"prize_total": o.PrizeTotal,
		}).Error
}

// CreateRewards batch-inserts reward rows in the caller's transaction.
func (r *Repository) CreateRewards(ctx context.Context, tx *gorm.DB, rewards []model.Reward) error {
	if len(rewards) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&rewards).Error
}

// ListRewards returns all reward rows ordered by rank.
func (r *Repository) ListRewards(ctx context.Context) ([]model.Reward, error) {
	var rs []model.Reward
	err := r.db.WithContext(ctx).Order("rank").Find(&rs).Error
	return rs, err
}

// ListRewardsByTicketIDs returns the reward rows for a set of tickets, on
// the given handle so claim transactions read under their own locks.
func (r *Repository) ListRewardsByTicketIDs(ctx context.Context, db *gorm.DB, ticketIDs []uint64) ([]model.Reward, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	var rs []model.Reward
	err := db.WithContext(ctx).Where("ticket_id IN ?", ticketIDs).Find(&rs).Error
	return rs, err
}

// ListRewardedTicketIDs returns the ids of tickets that already carry any
// reward row, within the caller's transaction.
func (r *Repository) ListRewardedTicketIDs(ctx context.Context, tx *gorm.DB) (map[uint64]bool, error) {
	var ids []uint64
	if err := tx.WithContext(ctx).Model(&model.Reward{}).Distinct().Pluck("ticket_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// ListTicketsWithRank joins tickets with their assigned ranks.
func (r *Repository) ListTicketsWithRank(ctx context.Context) ([]TicketRankRow, error) {
	var rows []TicketRankRow
	err := r.db.WithContext(ctx).
		Model(&model.Reward{}).
		Select("rewards.ticket_id, rewards.rank, tickets.number").
		Joins("JOIN tickets ON tickets.id = rewards.ticket_id").
		Order("rewards.rank").
		Scan(&rows).Error
	return rows, err
}
