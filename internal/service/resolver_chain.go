package service

import (
	"context"

	"plan-gate-server/internal/domain"
)

// resolveStep is one named source in a fallback chain. An empty result
// means "not found here".
type resolveStep struct {
	name    string
	resolve func(ctx context.Context) (string, error)
}

// resolveFirst tries steps in order and returns the first non-empty value
// with the name of the step that produced it. Step errors are logged and
// skipped; if nothing matches, the first error that is not schema drift is
// returned.
func resolveFirst(ctx context.Context, logger domain.Logger, chain string, steps ...resolveStep) (string, string, error) {
	var firstErr error
	for _, step := range steps {
		value, err := step.resolve(ctx)
		if err != nil {
			if domain.IsSchemaDrift(err) {
				logger.Warn("Resolver step skipped, schema drift", "chain", chain, "step", step.name, "error", err)
			} else {
				logger.Warn("Resolver step failed", "chain", chain, "step", step.name, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
			continue
		}
		if value != "" {
			logger.Debug("Resolver step matched", "chain", chain, "step", step.name)
			return value, step.name, nil
		}
	}
	return "", "", firstErr
}
