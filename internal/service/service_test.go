package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lotto999/lotto-service/internal/logger"
	"github.com/lotto999/lotto-service/internal/model"
	"github.com/lotto999/lotto-service/internal/repo"

	"github.com/segmentio/kafka-go"
)

// testEnv wires every service against one in-memory DB. Cache errors from the
// redis mock are tolerated by the services, so no expectations are set.
type testEnv struct {
	repo       *repo.Repository
	auth       *AuthService
	wallet     *WalletService
	sales      *SalesService
	reward     *RewardService
	settlement *SettlementService
}

func newTestEnv(t *testing.T) (*testEnv, context.Context) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	assert.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Wallet{}, &model.Ticket{},
		&model.Order{}, &model.Reward{}, &model.OutboxEvent{},
	))

	rdb, _ := redismock.NewClientMock()
	log, _ := logger.NewLogger()
	repository := repo.NewRepository(db, rdb, &kafka.Writer{}, log)

	env := &testEnv{
		repo:       repository,
		auth:       NewAuthService(repository, log),
		wallet:     NewWalletService(repository, log),
		sales:      NewSalesService(repository, log),
		reward:     NewRewardService(repository, rand.New(rand.NewSource(1)), log),
		settlement: NewSettlementService(repository, log),
	}
	return env, context.Background()
}

func (e *testEnv) seedUser(t *testing.T, ctx context.Context, email string, balance int64) *model.User {
	u := &model.User{
		Email:    email,
		Password: "secret",
		Fullname: "Test User",
	}
	_, err := e.auth.Register(ctx, u)
	assert.NoError(t, err)
	if balance > 0 {
		_, err = e.wallet.Deposit(ctx, u.ID, decimal.NewFromInt(balance))
		assert.NoError(t, err)
	}
	return u
}

func (e *testEnv) seedTicket(t *testing.T, ctx context.Context, number string, price int64) *model.Ticket {
	tk := &model.Ticket{Number: number, Price: decimal.NewFromInt(price)}
	_, err := e.sales.CreateTicket(ctx, tk)
	assert.NoError(t, err)
	return tk
}
