package api

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/datathon-cli/internal/models"
)

// Dashboard fetches the score history and the quota snapshot concurrently,
// the two panels the scores view is built from. A single failure is logged
// and leaves that panel nil so the other still renders; an error comes back
// only when both requests fail.
func (c *Client) Dashboard(ctx context.Context) (*models.ScoresResponse, *models.RemainingSubmissions, error) {
	var (
		wg        sync.WaitGroup
		scores    *models.ScoresResponse
		quota     *models.RemainingSubmissions
		scoresErr error
		quotaErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scores, scoresErr = c.Scores(ctx)
	}()
	go func() {
		defer wg.Done()
		quota, quotaErr = c.RemainingSubmissions(ctx)
	}()
	wg.Wait()

	if scoresErr != nil && quotaErr != nil {
		return nil, nil, scoresErr
	}
	if scoresErr != nil {
		log.Warn().Err(scoresErr).Msg("Score history unavailable")
	}
	if quotaErr != nil {
		log.Warn().Err(quotaErr).Msg("Quota snapshot unavailable")
	}
	return scores, quota, nil
}
