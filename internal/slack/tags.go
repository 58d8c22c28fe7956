package slack

import (
	"encoding/json"
	"sort"
	"strings"
)

// TagKind names one piece of correlation state kept per channel.
type TagKind string

const (
	TagMessageTS   TagKind = "message_ts"
	TagChannelID   TagKind = "channel_id"
	TagMessageLink TagKind = "message_link"
)

var tagKinds = []TagKind{TagMessageTS, TagChannelID, TagMessageLink}

// TagKey is a channel-qualified correlation tag name.
type TagKey struct {
	Kind    TagKind
	Channel string
}

// String renders the persisted tag name, e.g. "__channel_id_#alerts".
// Params: none.
// Returns: flat tag name.
func (k TagKey) String() string {
	return "__" + string(k.Kind) + "_" + k.Channel
}

// ParseTagKey splits a persisted tag name into kind and channel.
// Params: flat tag name.
// Returns: key and true when the name has a known kind prefix and a channel.
func ParseTagKey(name string) (TagKey, bool) {
	for _, kind := range tagKinds {
		prefix := "__" + string(kind) + "_"
		if channel, ok := strings.CutPrefix(name, prefix); ok && channel != "" {
			return TagKey{Kind: kind, Channel: channel}, true
		}
	}
	return TagKey{}, false
}

// Tags is the correlation state for one logical alert.
type Tags map[TagKey]string

// TagsFromEvent extracts correlation tags from collapsed event tags.
// Params: event_tags mapping after validation; unknown names and non-string values are skipped.
// Returns: correlation tags, empty when nothing matched.
func TagsFromEvent(eventTags map[string]any) Tags {
	out := Tags{}
	for name, raw := range eventTags {
		key, ok := ParseTagKey(name)
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// Lookup returns one tag value for a channel.
// Params: tag kind and channel.
// Returns: value and presence flag.
func (t Tags) Lookup(kind TagKind, channel string) (string, bool) {
	value, ok := t[TagKey{Kind: kind, Channel: channel}]
	return value, ok
}

// Flat renders tags with persisted names.
// Params: none.
// Returns: non-nil name to value mapping.
func (t Tags) Flat() map[string]string {
	out := make(map[string]string, len(t))
	for key, value := range t {
		out[key.String()] = value
	}
	return out
}

// Names lists persisted tag names in sorted order.
// Params: none.
// Returns: sorted names.
func (t Tags) Names() []string {
	names := make([]string, 0, len(t))
	for key := range t {
		names = append(names, key.String())
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes tags as a flat object; nil tags encode as {}.
func (t Tags) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Flat())
}

// UnmarshalJSON decodes a flat object, keeping only correlation names.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	out := Tags{}
	for name, value := range flat {
		if key, ok := ParseTagKey(name); ok {
			out[key] = value
		}
	}
	*t = out
	return nil
}

// Result is the outcome handed back to the monitoring engine.
// Closed marks an update that ended the alert lifecycle; it is not serialized.
type Result struct {
	Tags   Tags `json:"tags"`
	Closed bool `json:"-"`
}
