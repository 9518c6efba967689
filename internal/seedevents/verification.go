package seedevents

import (
	"context"
	"fmt"

	"github.com/okian/leadscore/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// verifyLeaderboard checks that ranks are contiguous from one and that rows
// are ordered by outreach score, then composite, then company id.
func verifyLeaderboard(board []Entry) error {
	if len(board) == 0 {
		return ErrNoData
	}
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: row %d has rank %d", ErrInconsistent, i, e.Rank)
		}
		if i == 0 {
			continue
		}
		if !ordered(board[i-1], e) {
			return fmt.Errorf("%w: %s ranked ahead of %s", ErrInconsistent, board[i-1].CompanyID, e.CompanyID)
		}
	}
	return nil
}

func ordered(a, b Entry) bool {
	if a.OutreachScore != b.OutreachScore {
		return a.OutreachScore > b.OutreachScore
	}
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	return a.CompanyID < b.CompanyID
}

// verifyRanks asks /rank for every leaderboard company and compares the rows.
func verifyRanks(ctx context.Context, cfg *Config, client *Client, board []Entry, stats *Stats) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, want := range board {
		g.Go(func() error {
			got, err := client.Rank(gctx, want.CompanyID)
			if err != nil {
				return err
			}
			if got.Rank != want.Rank || got.OutreachScore != want.OutreachScore {
				return fmt.Errorf("%w: %s has rank %d score %d, leaderboard says rank %d score %d",
					ErrInconsistent, want.CompanyID, got.Rank, got.OutreachScore, want.Rank, want.OutreachScore)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	stats.RanksChecked = len(board)
	return nil
}

// displayTop logs the head of the leaderboard.
func displayTop(ctx context.Context, board []Entry, n int) {
	n = min(n, len(board))
	for _, e := range board[:n] {
		logger.Get().Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.String("company", e.CompanyID),
			logger.Int("outreachScore", e.OutreachScore),
			logger.Int("composite", e.Composite),
			logger.String("recommendation", string(e.Recommendation)))
	}
}
