package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lotto999/lotto-service/internal/model"
)

// Full happy path: buy, draw, check, claim, claim again.
func TestSettleAndClaimFlow(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "flow@example.com", 1000000)
	tk := env.seedTicket(t, ctx, "123456", 100)

	buy, err := env.sales.Buy(ctx, u.ID, tk.ID)
	assert.NoError(t, err)
	assert.Equal(t, "999900", buy.Balance.StringFixed(0))
	assert.Equal(t, "not yet drawn", buy.Status)

	sold, err := env.repo.GetTicket(ctx, tk.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.TicketStatusSold, sold.Status)

	// single ticket pool: rank 1 lands on it regardless of the seed
	rewards, err := env.reward.AssignTopRewards(ctx)
	assert.NoError(t, err)
	assert.Len(t, rewards, 1)
	assert.Equal(t, "1", rewards[0].Rank)
	assert.Equal(t, tk.ID, rewards[0].TicketID)

	res, err := env.settlement.CheckAndSettle(ctx, u.ID)
	assert.NoError(t, err)
	assert.Len(t, res.Winners, 1)
	assert.Equal(t, "won 1 ได้ 6040000 x 1 = 6040000 (pending payout)", res.Winners[0].Status)

	claim, err := env.settlement.Claim(ctx, buy.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, "7039900", claim.Balance.StringFixed(0))
	assert.Equal(t, "paid 1 ได้ 6040000 x 1 = 6040000", claim.Status)

	// at-most-once payout
	_, err = env.settlement.Claim(ctx, buy.OrderID)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	w, err := env.repo.GetWalletByUser(ctx, u.ID)
	assert.NoError(t, err)
	assert.Equal(t, "7039900", w.Balance.StringFixed(0))
}

func TestCheckAndSettleIdempotent(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "idem@example.com", 1000)
	tk := env.seedTicket(t, ctx, "777777", 100)

	buy, err := env.sales.Buy(ctx, u.ID, tk.ID)
	assert.NoError(t, err)
	_, err = env.reward.AssignTopRewards(ctx)
	assert.NoError(t, err)

	first, err := env.settlement.CheckAndSettle(ctx, u.ID)
	assert.NoError(t, err)
	assert.Len(t, first.Winners, 1)

	o, err := env.repo.GetOrder(ctx, buy.OrderID)
	assert.NoError(t, err)
	stamp := o.UpdatedAt

	time.Sleep(20 * time.Millisecond)
	second, err := env.settlement.CheckAndSettle(ctx, u.ID)
	assert.NoError(t, err)
	assert.Len(t, second.Winners, 1)
	assert.Equal(t, first.Winners[0].Status, second.Winners[0].Status)
	assert.Equal(t, first.Winners[0].OrderID, second.Winners[0].OrderID)

	o2, err := env.repo.GetOrder(ctx, buy.OrderID)
	assert.NoError(t, err)
	assert.True(t, o2.UpdatedAt.Equal(stamp), "second pass must not write")
}

func TestBestRankResolution(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "best@example.com", 1000)
	tk := env.seedTicket(t, ctx, "111222", 100)

	_, err := env.sales.Buy(ctx, u.ID, tk.ID)
	assert.NoError(t, err)

	db := env.repo.DB(ctx)
	assert.NoError(t, db.Create(&model.Reward{TicketID: tk.ID, Rank: "4"}).Error)
	assert.NoError(t, db.Create(&model.Reward{TicketID: tk.ID, Rank: "1"}).Error)

	res, err := env.settlement.CheckAndSettle(ctx, u.ID)
	assert.NoError(t, err)
	assert.Len(t, res.Winners, 1)
	assert.Equal(t, "1", res.Winners[0].Rank)
	assert.Equal(t, "6040000", res.Winners[0].PrizeEach.StringFixed(0))
}

func TestSettleNoRewardYet(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "pending@example.com", 1000)
	tk := env.seedTicket(t, ctx, "999000", 100)

	buy, err := env.sales.Buy(ctx, u.ID, tk.ID)
	assert.NoError(t, err)

	res, err := env.settlement.CheckAndSettle(ctx, u.ID)
	assert.NoError(t, err)
	assert.Empty(t, res.Winners)
	assert.Empty(t, res.Losers)
	assert.Equal(t, []uint64{buy.OrderID}, res.Pending)

	o, err := env.repo.GetOrder(ctx, buy.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, model.StateNotDrawn, o.State)
}

func TestSettleNotWon(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "loser@example.com", 1000)
	tk := env.seedTicket(t, ctx, "313131", 100)

	buy, err := env.sales.Buy(ctx, u.ID, tk.ID)
	assert.NoError(t, err)
	// a rank outside the prize table pays nothing
	assert.NoError(t, env.repo.DB(ctx).Create(&model.Reward{TicketID: tk.ID, Rank: "6"}).Error)

	res, err := env.settlement.CheckAndSettle(ctx, u.ID)
	assert.NoError(t, err)
	assert.Empty(t, res.Winners)
	assert.Equal(t, []uint64{buy.OrderID}, res.Losers)

	o, err := env.repo.GetOrder(ctx, buy.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, model.StateNotWon, o.State)
	assert.Equal(t, "not won", o.StatusText())

	_, err = env.settlement.Claim(ctx, buy.OrderID)
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestClaimErrors(t *testing.T) {
	env, ctx := newTestEnv(t)
	_, err := env.settlement.Claim(ctx, 424242)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestClaimAll(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, ctx, "batch@example.com", 1000)
	t1 := env.seedTicket(t, ctx, "123434", 100)
	t2 := env.seedTicket(t, ctx, "555534", 100)

	_, err := env.sales.Buy(ctx, u.ID, t1.ID)
	assert.NoError(t, err)
	_, err = env.sales.Buy(ctx, u.ID, t2.ID)
	assert.NoError(t, err)

	created, err := env.reward.AssignSuffixReward(ctx, "34")
	assert.NoError(t, err)
	assert.Len(t, created, 2)

	_, err = env.settlement.CheckAndSettle(ctx, u.ID)
	assert.NoError(t, err)

	res, err := env.settlement.ClaimAll(ctx, u.ID)
	assert.NoError(t, err)
	assert.Len(t, res.Paid, 2)
	// 1000 - 200 spent + 2 * 20000 rank-5 prizes
	assert.Equal(t, "40800", res.Balance.StringFixed(0))

	// nothing pending anymore: informational no-op
	again, err := env.settlement.ClaimAll(ctx, u.ID)
	assert.NoError(t, err)
	assert.Empty(t, again.Paid)
	assert.Equal(t, "40800", again.Balance.StringFixed(0))
}
