package metrics

import "context"

type collectorKey struct{}

// WithCollector кладёт Collector запуска в контекст команды.
func WithCollector(ctx context.Context, c Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// FromContext возвращает Collector из контекста или NopCollector.
func FromContext(ctx context.Context) Collector {
	if ctx != nil {
		if c, ok := ctx.Value(collectorKey{}).(Collector); ok && c != nil {
			return c
		}
	}
	return NewNopCollector()
}
