package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lotto999/lotto-service/internal/model"
	"github.com/lotto999/lotto-service/internal/repo"
)

func TestBuySoldTicketFails(t *testing.T) {
	env, ctx := newTestEnv(t)
	u1 := env.seedUser(t, ctx, "first@example.com", 1000)
	u2 := env.seedUser(t, ctx, "second@example.com", 1000)
	tk := env.seedTicket(t, ctx, "654321", 100)

	_, err := env.sales.Buy(ctx, u1.ID, tk.ID)
	assert.NoError(t, err)

	// second buyer must fail and leave no trace
	_, err = env.sales.Buy(ctx, u2.ID, tk.ID)
	assert.ErrorIs(t, err, repo.ErrTicketUnavailable)

	var n int64
	assert.NoError(t, env.repo.DB(ctx).Model(&model.Order{}).
		Where("user_id = ?", u2.ID).Count(&n).Error)
	assert.Zero(t, n)
	w, err := env.repo.GetWalletByUser(ctx, u2.ID)
	assert.NoError(t, err)
	assert.Equal(t, "1000", w.Balance.StringFixed(0))
}

func TestBuyInsufficientFunds(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "poor@example.com", 50)
	tk := env.seedTicket(t, ctx, "222333", 100)

	_, err := env.sales.Buy(ctx, u.ID, tk.ID)
	assert.ErrorIs(t, err, repo.ErrInsufficientFunds)

	// rollback leaves the ticket sellable and no order behind
	fresh, err := env.repo.GetTicket(ctx, tk.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.TicketStatusHave, fresh.Status)
	var n int64
	assert.NoError(t, env.repo.DB(ctx).Model(&model.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestBuyNotFound(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "buyer@example.com", 1000)

	_, err := env.sales.Buy(ctx, 999, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = env.sales.Buy(ctx, u.ID, 999)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestMyTickets(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "mine@example.com", 1000)
	tk := env.seedTicket(t, ctx, "101010", 100)

	buy, err := env.sales.Buy(ctx, u.ID, tk.ID)
	assert.NoError(t, err)

	list, err := env.sales.MyTickets(ctx, u.ID)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, buy.OrderID, list[0].OrderID)
	assert.Equal(t, "101010", list[0].Number)
	assert.Equal(t, "not yet drawn", list[0].Status)
}

func TestCreateTicketValidation(t *testing.T) {
	env, ctx := newTestEnv(t)
	_, err := env.sales.CreateTicket(ctx, &model.Ticket{Number: "12345"})
	assert.ErrorIs(t, err, ErrInvalidNumber)
	_, err = env.sales.CreateTicket(ctx, &model.Ticket{Number: "12345x"})
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestListAvailable(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "shopper@example.com", 1000)
	t1 := env.seedTicket(t, ctx, "123499", 100)
	env.seedTicket(t, ctx, "888899", 100)
	env.seedTicket(t, ctx, "123400", 100)

	_, err := env.sales.Buy(ctx, u.ID, t1.ID)
	assert.NoError(t, err)

	all, err := env.sales.ListAvailable(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	bySuffix, err := env.sales.ListAvailable(ctx, "99")
	assert.NoError(t, err)
	assert.Len(t, bySuffix, 1)
	assert.Equal(t, "888899", bySuffix[0].Number)
}
