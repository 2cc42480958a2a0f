package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/retry"
)

// ErrStaleArtifact is returned when an input artifact from the current week
// did not appear within the freshness budget.
var ErrStaleArtifact = errors.New("no artifact from the current week")

// waitFresh polls until every prefix has an artifact modified this week.
func (s *Steps) waitFresh(ctx context.Context, log *zap.Logger, prefixes ...string) error {
	fc := s.deps.Config.Orchestrator.Freshness
	attempts := fc.Attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := retry.Fixed(attempts-1, fc.Interval)

	check := func(ctx context.Context) error {
		var stale []string
		for _, p := range prefixes {
			recent, err := s.deps.Store.IsRecent(ctx, p, s.deps.Now())
			if err != nil {
				return err
			}
			if !recent {
				stale = append(stale, p)
			}
		}
		if len(stale) > 0 {
			log.Info("waiting for this week's artifacts", zap.Strings("prefixes", stale))
			return etlerrors.Wrapf(ErrStaleArtifact, etlerrors.ErrorTypeStale, "stale input under %s", strings.Join(stale, ", "))
		}
		return nil
	}

	return policy.ExecuteWithCondition(ctx, check, func(err error) bool {
		return etlerrors.IsType(err, etlerrors.ErrorTypeStale)
	})
}
