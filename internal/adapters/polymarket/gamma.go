package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	gammaEventsPath = "/events"
	eventsPageSize  = 100
	eventsMaxPages  = 10
)

// FetchActiveMarkets devuelve los mercados abiertos de los eventos activos con los tags dados.
// Pagina por offset hasta agotar cada tag. Un mercado presente en varios tags se devuelve una vez.
func (c *Client) FetchActiveMarkets(ctx context.Context, tagIDs []int) ([]domain.Market, error) {
	seen := make(map[string]bool)
	var all []domain.Market

	for _, tag := range tagIDs {
		for page := 0; page < eventsMaxPages; page++ {
			url := fmt.Sprintf("%s%s?tag_id=%d&active=true&closed=false&limit=%d&offset=%d",
				c.gammaBase, gammaEventsPath, tag, eventsPageSize, page*eventsPageSize)

			var events []gammaEvent
			if err := c.get(ctx, c.gammaLimiter, url, &events); err != nil {
				return nil, fmt.Errorf("gamma.FetchActiveMarkets: tag %d: %w", tag, err)
			}

			for _, m := range mapEvents(events) {
				if seen[m.ConditionID] {
					continue
				}
				seen[m.ConditionID] = true
				all = append(all, m)
			}

			slog.Debug("fetched events page",
				"tag", tag,
				"page", page,
				"events", len(events),
				"markets", len(all),
			)

			if len(events) < eventsPageSize {
				break
			}
		}
	}

	slog.Info("active markets fetched", "tags", tagIDs, "total", len(all))
	return all, nil
}
