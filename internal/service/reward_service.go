package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lotto999/lotto-service/internal/model"
	"github.com/lotto999/lotto-service/internal/repo"
)

var (
	// ErrNoTickets means the draw pool is empty.
	ErrNoTickets = errors.New("no tickets to draw from")
	// ErrInvalidSuffix rejects suffixes that are not exactly 2 digits.
	ErrInvalidSuffix = errors.New("suffix must be exactly 2 digits")
)

// RewardService assigns prize ranks to tickets. The random source is
// injected so draws are reproducible in tests.
type RewardService struct {
	repo repo.RepositoryInterface
	rng  *rand.Rand
	log  *zap.SugaredLogger
}

// NewRewardService returns RewardService. A nil rng falls back to a
// time-seeded source.
func NewRewardService(r repo.RepositoryInterface, rng *rand.Rand, logger *zap.SugaredLogger) *RewardService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RewardService{repo: r, rng: rng, log: logger}
}

// AssignTopRewards draws ranks 1..3 uniformly from the ticket pool without
// replacement, then gives rank 4 to one random remaining ticket whose number
// shares the last 3 digits of the rank-1 ticket, if any. Only an empty pool
// is an error; a pool of one or two tickets just yields fewer ranks.
func (s *RewardService) AssignTopRewards(ctx context.Context) ([]model.Reward, error) {
	tickets, err := s.repo.ListTickets(ctx, s.repo.DB(ctx))
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNoTickets
	}

	perm := s.rng.Perm(len(tickets))
	top := len(perm)
	if top > 3 {
		top = 3
	}

	topRanks := []string{"1", "2", "3"}
	rewards := make([]model.Reward, 0, 4)
	for i := 0; i < top; i++ {
		rewards = append(rewards, model.Reward{
			TicketID: tickets[perm[i]].ID,
			Rank:     topRanks[i],
		})
	}

	first := tickets[perm[0]].Number
	if len(first) >= 3 {
		suffix := first[len(first)-3:]
		var candidates []uint64
		for _, i := range perm[top:] {
			if strings.HasSuffix(tickets[i].Number, suffix) {
				candidates = append(candidates, tickets[i].ID)
			}
		}
		if len(candidates) > 0 {
			rewards = append(rewards, model.Reward{
				TicketID: candidates[s.rng.Intn(len(candidates))],
				Rank:     "4",
			})
		}
	}

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.CreateRewards(ctx, tx, rewards)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("assigned %d top rewards", len(rewards))
	return rewards, nil
}

// AssignSuffixReward gives rank 5 to every ticket whose number ends with the
// 2-digit suffix. Tickets that already carry any reward keep what they have,
// so re-running with the same suffix is a no-op for them.
func (s *RewardService) AssignSuffixReward(ctx context.Context, suffix string) ([]model.Reward, error) {
	if len(suffix) != 2 || !isDigits(suffix) {
		return nil, ErrInvalidSuffix
	}

	var created []model.Reward
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		rewarded, err := s.repo.ListRewardedTicketIDs(ctx, tx)
		if err != nil {
			return err
		}
		tickets, err := s.repo.ListTickets(ctx, tx)
		if err != nil {
			return err
		}
		for _, t := range tickets {
			if rewarded[t.ID] || !strings.HasSuffix(t.Number, suffix) {
				continue
			}
			created = append(created, model.Reward{TicketID: t.ID, Rank: "5"})
		}
		return s.repo.CreateRewards(ctx, tx, created)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("assigned rank 5 to %d tickets ending in %q", len(created), suffix)
	return created, nil
}

// ListRewards returns every reward row ordered by rank.
func (s *RewardService) ListRewards(ctx context.Context) ([]model.Reward, error) {
	return s.repo.ListRewards(ctx)
}

// ShowRank lists tickets joined with their assigned ranks.
func (s *RewardService) ShowRank(ctx context.Context) ([]repo.TicketRankRow, error) {
	return s.repo.ListTicketsWithRank(ctx)
}
