package market

import (
	"context"
	"errors"
	"time"

	"covinance/internal/apperr"
	"covinance/internal/logger"
	"covinance/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fanOut runs tasks with at most limit in flight, each under its own timeout.
// A failed task never cancels its siblings; it is counted in Omitted. Results
// are merged in task order so completion order cannot leak into the output.
// NotFound is an empty answer, not a failure. If every task fails the whole
// query is RemoteUnavailable.
func fanOut[T any](ctx context.Context, query string, limit int, timeout time.Duration, tasks []func(context.Context) (Result[T], error)) (Result[T], error) {
	n := len(tasks)
	out := Result[T]{Attempted: n, FromCache: n > 0}
	if n == 0 {
		return out, nil
	}

	results := make([]Result[T], n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(limit)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			r, err := task(tctx)
			if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
				errs[i] = err
				return nil
			}
			results[i] = r
			return nil
		})
	}
	g.Wait()

	var firstErr error
	for i := range tasks {
		if errs[i] != nil {
			out.Omitted++
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		r := results[i]
		out.Items = append(out.Items, r.Items...)
		out.FromCache = out.FromCache && r.FromCache
		if r.Age > out.Age {
			out.Age = r.Age
		}
	}

	if out.Omitted > 0 {
		metrics.FanOutOmitted.WithLabelValues(query).Add(float64(out.Omitted))
		logger.Warn("Market", "fan-out incomplete",
			zap.String("query", query), zap.Int("omitted", out.Omitted), zap.Int("attempted", n), zap.Error(firstErr))
	}
	if out.Omitted == n {
		out.Items = nil
		out.FromCache = false
		if errors.Is(firstErr, context.Canceled) && ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, apperr.Wrap(apperr.KindRemoteUnavailable, firstErr, "all %d %s sub-queries failed", n, query)
	}
	return out, nil
}
