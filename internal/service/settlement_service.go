package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lotto999/lotto-service/internal/model"
	"github.com/lotto999/lotto-service/internal/prize"
	"github.com/lotto999/lotto-service/internal/repo"
)

var (
	// ErrOrderNotFound means no such order id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyPaid means the order's prize was already paid out.
	ErrAlreadyPaid = errors.New("order already paid out")
	// ErrNotClaimable means the order is not in the pending-payout state.
	ErrNotClaimable = errors.New("order is not pending payout")
	// ErrRewardNotFound means the order's ticket has no reward row.
	ErrRewardNotFound = errors.New("no reward recorded for this ticket")
	// ErrNoPrize means the resolved rank pays nothing.
	ErrNoPrize = errors.New("order did not win a prize")
)

// SettlementService reconciles orders against assigned rewards and pays out
// confirmed winnings.
type SettlementService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewSettlementService returns SettlementService.
func NewSettlementService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *SettlementService {
	return &SettlementService{repo: r, log: logger}
}

// SettledOrder is one order's resolved outcome.
type SettledOrder struct {
	OrderID    uint64          `json:"oid"`
	TicketID   uint64          `json:"lid"`
	Rank       string          `json:"rank"`
	PrizeEach  decimal.Decimal `json:"prizeEach"`
	Amount     int64           `json:"amount"`
	PrizeTotal decimal.Decimal `json:"prizeTotal"`
	Status     string          `json:"status"`
}

// SettleResult is the outcome of a settlement pass.
type SettleResult struct {
	Winners []SettledOrder `json:"winners"`
	Losers  []uint64       `json:"losers"`
	Pending []uint64       `json:"pending"`
}

// bestRankByTicket resolves each ticket to its single best reward: the
// numerically smallest rank wins, non-numeric ranks sort last.
func bestRankByTicket(rewards []model.Reward) map[uint64]string {
	type best struct {
		rank string
		n    int
	}
	m := make(map[uint64]best, len(rewards))
	for _, r := range rewards {
		n, err := strconv.Atoi(r.Rank)
		if err != nil {
			n = int(^uint(0) >> 1)
		}
		if cur, ok := m[r.TicketID]; !ok || n < cur.n {
			m[r.TicketID] = best{rank: r.Rank, n: n}
		}
	}
	out := make(map[uint64]string, len(m))
	for id, b := range m {
		out[id] = b.rank
	}
	return out
}

// CheckAndSettle advances the settlement state of a user's open orders.
// Orders already pending payout are surfaced unchanged; not-yet-drawn orders
// move to won-pending or not-won once their ticket has a reward, and stay put
// while the draw is unannounced. The pass is idempotent: with no new reward
// data it produces the same result and writes nothing.
func (s *SettlementService) CheckAndSettle(ctx context.Context, userID uint64) (*SettleResult, error) {
	res := &SettleResult{
		Winners: []SettledOrder{},
		Losers:  []uint64{},
		Pending: []uint64{},
	}

	orders, err := s.repo.ListSettleableOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return res, nil
	}

	seen := make(map[uint64]bool)
	var ticketIDs []uint64
	for _, o := range orders {
		if !seen[o.TicketID] {
			seen[o.TicketID] = true
			ticketIDs = append(ticketIDs, o.TicketID)
		}
	}
	rewards, err := s.repo.ListRewardsByTicketIDs(ctx, s.repo.DB(ctx), ticketIDs)
	if err != nil {
		return nil, err
	}
	best := bestRankByTicket(rewards)

	var changed []*model.Order
	for i := range orders {
		o := &orders[i]
		switch o.State {
		case model.StateWonPending:
			res.Winners = append(res.Winners, settledOrder(o))
		case model.StateNotDrawn:
			rank, ok := best[o.TicketID]
			if !ok {
				res.Pending = append(res.Pending, o.ID)
				continue
			}
			prizeEach := prize.ByRank(rank)
			o.Rank = rank
			if prizeEach.IsZero() {
				o.State = model.StateNotWon
				res.Losers = append(res.Losers, o.ID)
			} else {
				o.State = model.StateWonPending
				o.PrizeEach = prizeEach
				o.PrizeTotal = prizeEach.Mul(decimal.NewFromInt(o.Amount))
				res.Winners = append(res.Winners, settledOrder(o))
			}
			changed = append(changed, o)
		}
	}

	if len(changed) == 0 {
		return res, nil
	}
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range changed {
			if err := s.repo.UpdateOrderSettlement(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("settled %d orders for user %d (%d winners, %d losers)",
		len(changed), userID, len(res.Winners), len(res.Losers))
	return res, nil
}

// ClaimResult is the outcome of a payout.
type ClaimResult struct {
	OrderID    uint64          `json:"oid"`
	Status     string          `json:"status"`
	Rank       string          `json:"rank"`
	PrizeTotal decimal.Decimal `json:"prizeTotal"`
	Balance    decimal.Decimal `json:"balance"`
}

// Claim pays out one pending order into its owner's wallet. The order row is
// locked for the whole transaction so a second concurrent claim observes the
// paid state and fails.
func (s *SettlementService) Claim(ctx context.Context, orderID uint64) (*ClaimResult, error) {
	var out *ClaimResult
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.repo.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		switch o.State {
		case model.StatePaid:
			return ErrAlreadyPaid
		case model.StateWonPending:
		default:
			return ErrNotClaimable
		}

		rewards, err := s.repo.ListRewardsByTicketIDs(ctx, tx, []uint64{o.TicketID})
		if err != nil {
			return err
		}
		rank, ok := bestRankByTicket(rewards)[o.TicketID]
		if !ok {
			return ErrRewardNotFound
		}
		prizeEach := prize.ByRank(rank)
		if prizeEach.IsZero() {
			return ErrNoPrize
		}
		prizeTotal := prizeEach.Mul(decimal.NewFromInt(o.Amount))

		w, err := s.repo.GetWalletForUpdate(ctx, tx, o.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		newBal := w.Balance.Add(prizeTotal)
		if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, newBal, w.Version); err != nil {
			return err
		}

		o.State = model.StatePaid
		o.Rank = rank
		o.PrizeEach = prizeEach
		o.PrizeTotal = prizeTotal
		if err := s.repo.UpdateOrderSettlement(ctx, tx, o); err != nil {
			return err
		}
		if err := s.emitPrizePaid(ctx, tx, o, newBal); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, o.UserID, newBal); err != nil {
			s.log.Warn(err)
		}
		out = &ClaimResult{
			OrderID:    o.ID,
			Status:     o.StatusText(),
			Rank:       rank,
			PrizeTotal: prizeTotal,
			Balance:    newBal,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("paid order %d: %s", out.OrderID, out.PrizeTotal)
	return out, nil
}

// ClaimAllResult is the outcome of a batch payout.
type ClaimAllResult struct {
	Paid    []SettledOrder  `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
}

// ClaimAll pays out every pending order of a user in one transaction,
// crediting the wallet once with the cumulative total. Orders whose rank no
// longer resolves to a positive prize are skipped.
func (s *SettlementService) ClaimAll(ctx context.Context, userID uint64) (*ClaimAllResult, error) {
	res := &ClaimAllResult{Paid: []SettledOrder{}}

	w, err := s.repo.GetWalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	res.Balance = w.Balance

	pending, err := s.repo.ListSettleableOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	hasPending := false
	for _, o := range pending {
		if o.State == model.StateWonPending {
			hasPending = true
			break
		}
	}
	if !hasPending {
		return res, nil
	}

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		orders, err := s.repo.ListPendingOrdersForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		seen := make(map[uint64]bool)
		var ticketIDs []uint64
		for _, o := range orders {
			if !seen[o.TicketID] {
				seen[o.TicketID] = true
				ticketIDs = append(ticketIDs, o.TicketID)
			}
		}
		rewards, err := s.repo.ListRewardsByTicketIDs(ctx, tx, ticketIDs)
		if err != nil {
			return err
		}
		best := bestRankByTicket(rewards)

		w, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}

		total := decimal.Zero
		for i := range orders {
			o := &orders[i]
			rank, ok := best[o.TicketID]
			if !ok {
				continue
			}
			prizeEach := prize.ByRank(rank)
			if prizeEach.IsZero() {
				continue
			}
			prizeTotal := prizeEach.Mul(decimal.NewFromInt(o.Amount))
			o.State = model.StatePaid
			o.Rank = rank
			o.PrizeEach = prizeEach
			o.PrizeTotal = prizeTotal
			if err := s.repo.UpdateOrderSettlement(ctx, tx, o); err != nil {
				return err
			}
			total = total.Add(prizeTotal)
			res.Paid = append(res.Paid, settledOrder(o))
		}
		if len(res.Paid) == 0 {
			res.Balance = w.Balance
			return nil
		}

		newBal := w.Balance.Add(total)
		if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, newBal, w.Version); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"user_id": userID, "orders": len(res.Paid), "total": total, "balance": newBal,
		})
		evt := &model.OutboxEvent{
			Aggregate: "Wallet", AggregateID: userID, EventType: "PrizePaidBatch", Payload: string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, userID, newBal); err != nil {
			s.log.Warn(err)
		}
		res.Balance = newBal
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(res.Paid) > 0 {
		s.log.Infof("paid %d orders for user %d", len(res.Paid), userID)
	}
	return res, nil
}

func (s *SettlementService) emitPrizePaid(ctx context.Context, tx *gorm.DB, o *model.Order, bal decimal.Decimal) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"order_id": o.ID, "user_id": o.UserID, "rank": o.Rank,
		"prize_total": o.PrizeTotal, "balance": bal,
	})
	return s.repo.CreateOutboxEvent(ctx, tx, &model.OutboxEvent{
		Aggregate: "Order", AggregateID: o.ID, EventType: "PrizePaid", Payload: string(payload),
	})
}

func settledOrder(o *model.Order) SettledOrder {
	return SettledOrder{
		OrderID:    o.ID,
		TicketID:   o.TicketID,
		Rank:       o.Rank,
		PrizeEach:  o.PrizeEach,
		Amount:     o.Amount,
		PrizeTotal: o.PrizeTotal,
		Status:     o.StatusText(),
	}
}
