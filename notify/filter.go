package notify

import "context"

// FilterNotifier forwards only events of the listed types.
type FilterNotifier struct {
	Notifier Notifier
	Types    map[EventType]bool
}

// Only wraps n so that it receives only the given event types.
func Only(n Notifier, types ...EventType) *FilterNotifier {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return &FilterNotifier{Notifier: n, Types: set}
}

// Notify implements Notifier.
func (f *FilterNotifier) Notify(ctx context.Context, event Event) error {
	if !f.Types[event.Type] {
		return nil
	}
	return f.Notifier.Notify(ctx, event)
}
