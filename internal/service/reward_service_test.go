package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lotto999/lotto-service/internal/model"
)

func TestAssignTopRewards(t *testing.T) {
	env, ctx := newTestEnv(t)
	for _, n := range []string{"100001", "200002", "300003", "400004", "500005", "600006"} {
		env.seedTicket(t, ctx, n, 80)
	}

	rewards, err := env.reward.AssignTopRewards(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(rewards), 3)

	byRank := map[string]uint64{}
	seen := map[uint64]bool{}
	for _, r := range rewards {
		assert.False(t, seen[r.TicketID], "a ticket may win at most one top rank")
		seen[r.TicketID] = true
		byRank[r.Rank] = r.TicketID
	}
	assert.Contains(t, byRank, "1")
	assert.Contains(t, byRank, "2")
	assert.Contains(t, byRank, "3")

	if tid, ok := byRank["4"]; ok {
		first, err := env.repo.GetTicket(ctx, byRank["1"])
		assert.NoError(t, err)
		fourth, err := env.repo.GetTicket(ctx, tid)
		assert.NoError(t, err)
		suffix := first.Number[len(first.Number)-3:]
		assert.True(t, strings.HasSuffix(fourth.Number, suffix))
	}
}

func TestAssignTopRewardsEmptyPool(t *testing.T) {
	env, ctx := newTestEnv(t)
	_, err := env.reward.AssignTopRewards(ctx)
	assert.ErrorIs(t, err, ErrNoTickets)
}

func TestAssignSuffixReward(t *testing.T) {
	env, ctx := newTestEnv(t)
	for _, n := range []string{"123434", "555534", "999999"} {
		env.seedTicket(t, ctx, n, 80)
	}

	created, err := env.reward.AssignSuffixReward(ctx, "34")
	assert.NoError(t, err)
	assert.Len(t, created, 2)
	for _, r := range created {
		assert.Equal(t, "5", r.Rank)
	}

	// already-rewarded tickets keep their reward on a re-run
	again, err := env.reward.AssignSuffixReward(ctx, "34")
	assert.NoError(t, err)
	assert.Empty(t, again)

	all, err := env.reward.ListRewards(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAssignSuffixRewardValidation(t *testing.T) {
	env, ctx := newTestEnv(t)
	for _, bad := range []string{"", "3", "345", "3x"} {
		_, err := env.reward.AssignSuffixReward(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidSuffix, "suffix %q", bad)
	}
}

func TestShowRank(t *testing.T) {
	env, ctx := newTestEnv(t)
	tk := env.seedTicket(t, ctx, "424242", 80)
	assert.NoError(t, env.repo.DB(ctx).Create(&model.Reward{TicketID: tk.ID, Rank: "2"}).Error)

	rows, err := env.reward.ShowRank(ctx)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "424242", rows[0].Number)
	assert.Equal(t, "2", rows[0].Rank)
}
