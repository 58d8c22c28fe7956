package slack

import (
	"fmt"
	"strconv"
	"strings"

	"slackrelay/internal/config"
	"slackrelay/internal/event"
	"slackrelay/internal/validate"
)

// Mode selects whether follow-up events edit the original message.
type Mode string

const (
	// ModeAlarm keeps one message per alert and edits it on update/resolve.
	ModeAlarm Mode = "alarm"
	// ModeEvent posts a new message for every event.
	ModeEvent Mode = "event"
)

// Settings holds endpoint and presentation constants of the correlator.
type Settings struct {
	APIBase        string
	SeverityColors []string
	ResolveColor   string
	Reaction       string
	ButtonText     string
	UpdateTitle    string
}

// SettingsFromConfig copies the [slack] section into correlator settings.
// Params: validated slack config.
// Returns: settings.
func SettingsFromConfig(cfg config.SlackConfig) Settings {
	return Settings{
		APIBase:        cfg.APIBase,
		SeverityColors: append([]string(nil), cfg.SeverityColors...),
		ResolveColor:   cfg.ResolveColor,
		Reaction:       cfg.Reaction,
		ButtonText:     cfg.ButtonText,
		UpdateTitle:    cfg.UpdateTitle,
	}
}

// DefaultSettings returns the stock Slack endpoint and look.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default().Slack)
}

var (
	commonSchema = validate.Schema{
		{Name: "alert_subject", Rule: validate.Rule{Type: validate.TypeString}},
		{Name: "alert_message", Rule: validate.Rule{Type: validate.TypeString}},
		{Name: "bot_token", Rule: validate.Rule{Type: validate.TypeString}},
		{Name: "zabbix_url", Rule: validate.Rule{Type: validate.TypeString, URL: true}},
		{Name: "channel", Rule: validate.Rule{Type: validate.TypeString, Macro: "ALERT.SENDTO"}},
		{Name: "slack_mode", Rule: validate.Rule{Type: validate.TypeString, OneOf: []any{string(ModeAlarm), string(ModeEvent)}}},
	}
	triggerSchema = validate.Schema{
		{Name: "event_id", Rule: validate.Rule{Type: validate.TypeInteger}},
		{Name: "trigger_id", Rule: validate.Rule{Type: validate.TypeInteger}},
	}
	tagsSchema = validate.Schema{
		{Name: "event_tags", Rule: validate.Rule{Type: validate.TypeArray, Macro: "EVENT.TAGSJSON", Tags: true, Default: map[string]any{}}},
	}
)

// Notification carries validated parameters and prepared payloads through one invocation.
type Notification struct {
	Source     event.Source
	Params     validate.Params
	Channel    string
	Token      string
	Mode       Mode
	Tags       Tags
	ProblemURL string
	Message    Message
}

// CheckParams validates Slack parameters and prepares the outbound message.
// Params: params after event preparation (mutated in place), parsed source, and settings.
// Returns: notification or configuration failure.
func CheckParams(params validate.Params, source event.Source, settings Settings) (*Notification, error) {
	if _, err := validate.Validate(commonSchema, params); err != nil {
		return nil, err
	}
	if source == event.SourceTrigger {
		if _, err := validate.Validate(triggerSchema, params); err != nil {
			return nil, err
		}
	}
	if source.ValueBearing() {
		if _, err := validate.Validate(tagsSchema, params); err != nil {
			return nil, err
		}
	}

	channel := params.Text("channel")
	eventTags, _ := params["event_tags"].(map[string]any)
	if params.Text("event_value") != "0" && eventTags != nil {
		// Correlation state for this channel means the problem was already announced.
		if _, seen := eventTags[TagKey{Kind: TagChannelID, Channel: channel}.String()]; seen {
			params["event_update_status"] = "1"
		}
	}

	link := ProblemURL(source, params.Text("zabbix_url"), params["trigger_id"], params["event_id"])
	return &Notification{
		Source:     source,
		Params:     params,
		Channel:    channel,
		Token:      params.Text("bot_token"),
		Mode:       Mode(strings.ToLower(params.Text("slack_mode"))),
		Tags:       TagsFromEvent(eventTags),
		ProblemURL: link,
		Message: newMessage(
			channel,
			params.Text("alert_subject"),
			params.Text("alert_message"),
			severityColor(settings.SeverityColors, params.Text("event_nseverity")),
			link,
			settings.ButtonText,
		),
	}, nil
}

// ProblemURL links the message to the originating frontend page.
// Params: source, frontend base URL, trigger id, and event id.
// Returns: event page for triggers, service list for services, base URL otherwise.
func ProblemURL(source event.Source, base string, triggerID, eventID any) string {
	switch source {
	case event.SourceTrigger:
		return fmt.Sprintf("%s/tr_events.php?triggerid=%v&eventid=%v", base, triggerID, eventID)
	case event.SourceService:
		return base + "/zabbix.php?action=service.list"
	default:
		return base
	}
}

// severityColor picks the attachment color for a numeric severity.
// Params: color table and severity text.
// Returns: color or "" for unknown severities.
func severityColor(colors []string, severity string) string {
	index, err := strconv.Atoi(severity)
	if err != nil || index < 0 || index >= len(colors) {
		return ""
	}
	return colors[index]
}
