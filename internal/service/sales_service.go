package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lotto999/lotto-service/internal/model"
	"github.com/lotto999/lotto-service/internal/repo"
)

var (
	// ErrTicketNotFound means no such ticket id.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInvalidNumber rejects ticket numbers that are not 6 digits.
	ErrInvalidNumber = errors.New("ticket number must be exactly 6 digits")
)

// SalesService sells tickets and lists what a user bought.
type SalesService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewSalesService returns SalesService.
func NewSalesService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *SalesService {
	return &SalesService{repo: r, log: logger}
}

// BuyResult is what a successful purchase returns.
type BuyResult struct {
	OrderID uint64          `json:"buyid"`
	Number  string          `json:"number"`
	Price   decimal.Decimal `json:"price"`
	Balance decimal.Decimal `json:"balance"`
	Status  string          `json:"statusbonus"`
}

// Buy sells one ticket to a user: create the order, debit the wallet, flip
// the ticket to sold, all in one transaction. The conditional ticket flip
// inside the transaction is the guard against a concurrent double sale; the
// checks before it only produce friendlier errors.
func (s *SalesService) Buy(ctx context.Context, userID, ticketID uint64) (*BuyResult, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	if _, err := s.repo.GetWalletByUser(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if t.Status != model.TicketStatusHave {
		return nil, repo.ErrTicketUnavailable
	}

	var out *BuyResult
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SellTicket(ctx, tx, ticketID); err != nil {
			return err
		}
		w, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if w.Balance.LessThan(t.Price) {
			return repo.ErrInsufficientFunds
		}
		newBal := w.Balance.Sub(t.Price)
		if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, newBal, w.Version); err != nil {
			return err
		}
		o := &model.Order{
			UserID:   userID,
			TicketID: ticketID,
			Amount:   1,
			State:    model.StateNotDrawn,
		}
		if err := s.repo.CreateOrder(ctx, tx, o); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"order_id": o.ID, "user_id": userID, "ticket_id": ticketID, "price": t.Price,
		})
		evt := &model.OutboxEvent{
			Aggregate: "Order", AggregateID: o.ID, EventType: "TicketSold", Payload: string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, userID, newBal); err != nil {
			s.log.Warn(err)
		}
		out = &BuyResult{
			OrderID: o.ID,
			Number:  t.Number,
			Price:   t.Price,
			Balance: newBal,
			Status:  o.StatusText(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("user %d bought ticket %d (order %d)", userID, ticketID, out.OrderID)
	return out, nil
}

// MyTicket is one row of a user's purchase listing.
type MyTicket struct {
	OrderID  uint64          `json:"orderId"`
	TicketID uint64          `json:"ticketId"`
	Number   string          `json:"number"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status"`
}

// MyTickets lists a user's orders joined with their tickets.
func (s *SalesService) MyTickets(ctx context.Context, userID uint64) ([]MyTicket, error) {
	rows, err := s.repo.ListOrdersWithTickets(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MyTicket, 0, len(rows))
	for _, row := range rows {
		o := model.Order{
			State:      row.State,
			Rank:       row.Rank,
			Amount:     row.Amount,
			PrizeEach:  row.PrizeEach,
			PrizeTotal: row.PrizeTotal,
		}
		out = append(out, MyTicket{
			OrderID:  row.OrderID,
			TicketID: row.TicketID,
			Number:   row.Number,
			Price:    row.Price,
			Status:   o.StatusText(),
		})
	}
	return out, nil
}

// CreateTicket issues a new sellable ticket.
func (s *SalesService) CreateTicket(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	if !isDigits(t.Number) || len(t.Number) != 6 {
		return nil, ErrInvalidNumber
	}
	if t.Status == "" {
		t.Status = model.TicketStatusHave
	}
	if err := s.repo.CreateTicket(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListAvailable lists unsold tickets, optionally filtered by number suffix.
func (s *SalesService) ListAvailable(ctx context.Context, suffix string) ([]model.Ticket, error) {
	if suffix != "" && !isDigits(suffix) {
		return nil, ErrInvalidNumber
	}
	return s.repo.ListAvailableTickets(ctx, suffix)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
