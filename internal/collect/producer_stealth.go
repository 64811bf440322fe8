package collect

import (
	"context"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

// StealthProducer streams the target set a StealthTargetBuilder
// assembled, low-profile path-derived hosts plus (unless excluded) the
// domain controllers, rather than a broad object sweep (spec.md §4.3).
type StealthProducer struct {
	Builder *StealthTargetBuilder
}

// NewStealthProducer wraps builder. The same builder should be reused
// across loop passes so its "build exactly once" contract holds.
func NewStealthProducer(builder *StealthTargetBuilder) *StealthProducer {
	return &StealthProducer{Builder: builder}
}

func (p *StealthProducer) Produce(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error {
	if err := p.Builder.Build(ctx); err != nil {
		return err
	}
	for _, obj := range p.Builder.Targets() {
		if obj == nil {
			continue
		}
		if !emit(ctx, rc, out, obj) {
			return nil
		}
	}
	return nil
}

// ProduceConfigNC streams the configuration-partition result set. This
// reads Builder.ConfigTargets(), the set built from
// NCSet.Config.Filter/Attributes — the fix for the bug spec.md §9 flags,
// where the original's config-NC path streamed default-NC data instead.
func (p *StealthProducer) ProduceConfigNC(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error {
	if err := p.Builder.Build(ctx); err != nil {
		return err
	}
	for _, obj := range p.Builder.ConfigTargets() {
		if obj == nil {
			continue
		}
		if !emit(ctx, rc, out, obj) {
			return nil
		}
	}
	return nil
}
