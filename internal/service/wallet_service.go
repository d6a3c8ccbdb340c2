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
	// ErrInvalidAmount means a non-positive amount was passed.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrWalletExists means the user already has a wallet.
	ErrWalletExists = errors.New("wallet already exists")
	// ErrWalletNotFound means the user has no wallet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrNegativeBalance rejects overwriting a balance below zero.
	ErrNegativeBalance = errors.New("balance must be >= 0")
)

// WalletService owns wallet balance reads and top-up/withdraw movement.
type WalletService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewWalletService returns WalletService.
func NewWalletService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *WalletService {
	return &WalletService{repo: r, log: logger}
}

// Get returns the wallet snapshot of a user.
func (s *WalletService) Get(ctx context.Context, userID uint64) (*model.Wallet, error) {
	w, err := s.repo.GetWalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if bal, cerr := s.repo.GetCachedBalance(ctx, userID); cerr == nil {
		w.Balance = bal
	}
	return w, nil
}

// Deposit adds money to a user's wallet.
func (s *WalletService) Deposit(ctx context.Context, userID uint64, amt decimal.Decimal) (decimal.Decimal, error) {
	if amt.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	var finalBal decimal.Decimal
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		newBal := w.Balance.Add(amt)
		if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, newBal, w.Version); err != nil {
			return err
		}
		if err := s.emitWalletEvent(ctx, tx, userID, "Deposit", amt, newBal); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, userID, newBal); err != nil {
			s.log.Warn(err)
		}
		finalBal = newBal
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return finalBal, nil
}

// Withdraw takes money out of a user's wallet.
func (s *WalletService) Withdraw(ctx context.Context, userID uint64, amt decimal.Decimal) (decimal.Decimal, error) {
	if amt.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	var finalBal decimal.Decimal
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if w.Balance.LessThan(amt) {
			return repo.ErrInsufficientFunds
		}
		newBal := w.Balance.Sub(amt)
		if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, newBal, w.Version); err != nil {
			return err
		}
		if err := s.emitWalletEvent(ctx, tx, userID, "Withdraw", amt, newBal); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, userID, newBal); err != nil {
			s.log.Warn(err)
		}
		finalBal = newBal
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return finalBal, nil
}

// CreateIfMissing creates a zero-balance wallet for an existing user.
func (s *WalletService) CreateIfMissing(ctx context.Context, userID uint64) (*model.Wallet, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	if _, err := s.repo.GetWalletByUser(ctx, userID); err == nil {
		return nil, ErrWalletExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w := &model.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := s.repo.CreateWallet(ctx, s.repo.DB(ctx), w); err != nil {
		return nil, err
	}
	return w, nil
}

// Update overwrites the external account id and, when given, the balance.
func (s *WalletService) Update(ctx context.Context, userID uint64, accountID *string, balance *decimal.Decimal) (*model.Wallet, error) {
	if balance != nil && balance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	var out *model.Wallet
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if accountID != nil && *accountID != "" {
			w.AccountID = accountID
			if err := tx.Model(&model.Wallet{}).Where("id = ?", w.ID).
				Update("account_id", *accountID).Error; err != nil {
				return err
			}
		}
		if balance != nil {
			if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, *balance, w.Version); err != nil {
				return err
			}
			w.Balance = *balance
			if err := s.repo.CacheBalance(ctx, userID, *balance); err != nil {
				s.log.Warn(err)
			}
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *WalletService) emitWalletEvent(ctx context.Context, tx *gorm.DB, userID uint64, event string, amt, bal decimal.Decimal) error {
	payload, _ := json.Marshal(map[string]interface{}{"user_id": userID, "amount": amt, "balance": bal})
	return s.repo.CreateOutboxEvent(ctx, tx, &model.OutboxEvent{
		Aggregate: "Wallet", AggregateID: userID, EventType: event, Payload: string(payload),
	})
}
