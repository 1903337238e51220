package mirror

import (
	"context"

	"go.uber.org/zap"

	"github.com/verygreenboi/putio-trauma/internal/target"
)

// SkipPolicy decides which tasks are already mirrored.
type SkipPolicy struct {
	target target.Target
	log    *zap.Logger
}

// NewSkipPolicy returns a policy checking files on t.
func NewSkipPolicy(t target.Target, log *zap.Logger) SkipPolicy {
	if log == nil {
		log = zap.NewNop()
	}
	return SkipPolicy{target: t, log: log}
}

// ShouldSkip reports whether the target already holds a file at the task's
// path whose length equals the remote size. A task with an unknown remote
// size is never skipped. Errors inspecting the target mean download.
func (p SkipPolicy) ShouldSkip(ctx context.Context, task Task) bool {
	want, known := task.Entry.KnownSize()
	if !known {
		return false
	}

	have, exists, err := p.target.Size(ctx, task.TargetPath)
	if err != nil {
		p.log.Debug("cannot inspect target file, downloading",
			zap.String("path", task.TargetPath),
			zap.Error(err))
		return false
	}
	return exists && have == want
}

// Filter splits tasks into the ones still to download and the ones already
// present, preserving order.
func (p SkipPolicy) Filter(ctx context.Context, tasks []Task) (pending, skipped []Task) {
	for _, task := range tasks {
		if p.ShouldSkip(ctx, task) {
			p.log.Debug("already present", zap.String("path", task.TargetPath))
			skipped = append(skipped, task)
			continue
		}
		pending = append(pending, task)
	}
	return pending, skipped
}
