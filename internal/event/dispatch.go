package event

import (
	"context"
	"fmt"

	"slackrelay/internal/failure"
)

// Key identifies one handler slot; SourceAny/ActionAny act as wildcards.
// Params: source and action selectors.
// Returns: registry key.
type Key struct {
	Source Source
	Action Action
}

// OnEvent is the catch-all handler slot.
var OnEvent = Key{Source: SourceAny, Action: ActionAny}

// OnAction returns the slot for one action of any value-bearing source.
// Params: action.
// Returns: registry key.
func OnAction(action Action) Key {
	return Key{Source: SourceAny, Action: action}
}

// OnSource returns the slot for an eventless source.
// Params: source.
// Returns: registry key.
func OnSource(source Source) Key {
	return Key{Source: source, Action: ActionNone}
}

// OnSourceAction returns the most specific slot.
// Params: source and action.
// Returns: registry key.
func OnSourceAction(source Source, action Action) Key {
	return Key{Source: source, Action: action}
}

// Candidates lists handler slots from most to least specific.
// Params: none.
// Returns: ordered keys tried by Registry.Dispatch.
func (a Alert) Candidates() []Key {
	if a.Eventless() {
		return []Key{OnSource(a.Source), OnEvent}
	}
	return []Key{OnSourceAction(a.Source, a.Action), OnAction(a.Action), OnEvent}
}

// Handler reacts to one alert.
// Params: context and alert.
// Returns: result pointer (nil to fall through to a more general handler) or failure.
type Handler[R any] func(ctx context.Context, alert Alert) (*R, error)

// Registry maps handler slots to handlers.
// Params: keys built by OnSourceAction/OnAction/OnSource/OnEvent.
// Returns: dispatch table.
type Registry[R any] map[Key]Handler[R]

// Dispatch runs registered handlers in specificity order until one yields a result.
// A handler returning nil without error hands over to the next, more general slot.
// Params: context and alert.
// Returns: first non-nil result, first handler error, or failure when nothing answered.
func (r Registry[R]) Dispatch(ctx context.Context, alert Alert) (*R, error) {
	if alert.Source < SourceTrigger || alert.Source > SourceService {
		return nil, failure.Errorf(failure.KindUnsupportedSource, "unexpected \"event_source\": %d", int(alert.Source))
	}
	for _, key := range alert.Candidates() {
		handler, ok := r[key]
		if !ok || handler == nil {
			continue
		}
		result, err := handler(ctx, alert)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, fmt.Errorf("no handler produced a result for %s/%s", alert.Source, alert.Action)
}
