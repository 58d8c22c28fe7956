package event

import (
	"slices"

	"slackrelay/internal/failure"
	"slackrelay/internal/validate"
)

// Source is the monitoring subsystem that produced the event.
// Params: integer code 0-4 from event_source.
// Returns: immutable source classification.
type Source int

const (
	// SourceTrigger is a trigger-based problem event (code 0).
	SourceTrigger Source = iota
	// SourceDiscovery is a network discovery event (code 1).
	SourceDiscovery
	// SourceAutoreg is an agent autoregistration event (code 2).
	SourceAutoreg
	// SourceInternal is an internal item/trigger state event (code 3).
	SourceInternal
	// SourceService is a service status change event (code 4).
	SourceService

	// SourceAny matches every source in handler keys.
	SourceAny Source = -1
)

// Action is the lifecycle step of a value-bearing event.
// Params: derived from update status and value flags.
// Returns: lifecycle classification.
type Action int

const (
	// ActionNone marks eventless sources.
	ActionNone Action = iota
	// ActionProblem marks a new problem.
	ActionProblem
	// ActionResolve marks a recovered problem.
	ActionResolve
	// ActionUpdate marks an acknowledgement, comment, or severity change.
	ActionUpdate

	// ActionAny matches every action in handler keys.
	ActionAny Action = -1
)

var (
	sourceCodes = map[string]Source{
		"0": SourceTrigger,
		"1": SourceDiscovery,
		"2": SourceAutoreg,
		"3": SourceInternal,
		"4": SourceService,
	}
	binaryFlags    = []string{"0", "1"}
	internalValues = []string{"0", "1", "2", "3"}
	severityLevels = []string{"0", "1", "2", "3", "4", "5"}
)

// String returns the source label used in logs.
// Params: none.
// Returns: capitalized source name.
func (s Source) String() string {
	switch s {
	case SourceTrigger:
		return "Trigger"
	case SourceDiscovery:
		return "Discovery"
	case SourceAutoreg:
		return "Autoreg"
	case SourceInternal:
		return "Internal"
	case SourceService:
		return "Service"
	case SourceAny:
		return "*"
	default:
		return "Unknown"
	}
}

// ValueBearing reports whether the source carries problem/resolve/update actions.
// Params: none.
// Returns: true for Trigger, Internal, and Service.
func (s Source) ValueBearing() bool {
	return s == SourceTrigger || s == SourceInternal || s == SourceService
}

// String returns the action label used in logs.
// Params: none.
// Returns: capitalized action name.
func (a Action) String() string {
	switch a {
	case ActionProblem:
		return "Problem"
	case ActionResolve:
		return "Resolve"
	case ActionUpdate:
		return "Update"
	case ActionAny:
		return "*"
	default:
		return "None"
	}
}

// Alert is one classified event occurrence handed to handlers.
// Params: source and action (ActionNone for eventless sources).
// Returns: dispatch descriptor.
type Alert struct {
	Source Source
	Action Action
}

// Eventless reports whether the alert has no lifecycle action.
// Params: none.
// Returns: true for Discovery and Autoreg.
func (a Alert) Eventless() bool {
	return !a.Source.ValueBearing()
}

// ParseSource maps an event_source code to a Source.
// Params: raw code string.
// Returns: source or UnsupportedSource failure.
func ParseSource(code string) (Source, error) {
	source, ok := sourceCodes[code]
	if !ok {
		return 0, failure.Errorf(failure.KindUnsupportedSource, "incorrect \"event_source\" parameter given: %s. Must be 0-4", code)
	}
	return source, nil
}

// Prepare checks source/value/update flags and applies the service severity rewrite.
// Params: raw params mutated in place; calling it twice is a no-op the second time.
// Returns: parsed source or the first unsupported combination.
func Prepare(params validate.Params) (Source, error) {
	source, err := ParseSource(params.Text("event_source"))
	if err != nil {
		return 0, err
	}
	if !source.ValueBearing() {
		return source, nil
	}

	value := params.Text("event_value")
	if source == SourceInternal && !slices.Contains(internalValues, value) {
		return 0, failure.Errorf(failure.KindUnsupportedSource, "incorrect \"event_value\" parameter given: %s. Must be 0-3", value)
	}
	if !slices.Contains(binaryFlags, value) {
		return 0, failure.Errorf(failure.KindUnsupportedSource, "incorrect \"event_value\" parameter given: %s. Must be 0 or 1", value)
	}
	if source == SourceTrigger {
		status := params.Text("event_update_status")
		if !slices.Contains(binaryFlags, status) {
			return 0, failure.Errorf(failure.KindUnsupportedSource, "incorrect \"event_update_status\" parameter given: %s. Must be 0 or 1", status)
		}
	}
	if source == SourceService {
		applySeverityChange(params)
	}
	return source, nil
}

// applySeverityChange turns a service severity change into an implicit update.
func applySeverityChange(params validate.Params) {
	updated := params.Text("event_update_nseverity")
	if !slices.Contains(severityLevels, updated) || updated == params.Text("event_nseverity") {
		return
	}
	params["event_nseverity"] = updated
	params["event_severity"] = params["event_update_severity"]
	params["event_update_status"] = "1"
}

// Classify derives the canonical (source, action) pair from params.
// Params: params after Prepare and parameter validation.
// Returns: alert descriptor or UnsupportedSource failure.
func Classify(params validate.Params) (Alert, error) {
	source, err := Prepare(params)
	if err != nil {
		return Alert{}, err
	}
	if !source.ValueBearing() {
		return Alert{Source: source, Action: ActionNone}, nil
	}

	action := ActionResolve
	switch {
	case params.Text("event_update_status") == "1":
		action = ActionUpdate
	case params.Text("event_value") == "1":
		action = ActionProblem
	}
	return Alert{Source: source, Action: action}, nil
}
