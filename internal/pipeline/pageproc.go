package pipeline

import "context"

// PageHandler is the user-supplied full-page handler of §4.G.
type PageHandler func(ctx context.Context, page Page) error

// PageProcessor runs the user handler on the fully-loaded page. The only
// protocol work is failure handling, per §4.G: on handler error, pause in
// debug mode, always re-raise.
type PageProcessor struct {
	Handler      PageHandler
	PauseOnError bool
	DebugMode    bool
}

func (p *PageProcessor) Process(ctx context.Context, page Page) error {
	ctx, span := tracer.Start(ctx, "pageproc.process")
	defer span.End()

	err := p.Handler(ctx, page)
	if err != nil {
		if p.PauseOnError && p.DebugMode {
			_ = page.Pause(ctx)
		}
		span.RecordError(err)
		return err
	}
	return nil
}
