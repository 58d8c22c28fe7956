package slack

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"slackrelay/internal/event"
	"slackrelay/internal/failure"
	"slackrelay/internal/logging"
	"slackrelay/internal/transport"
	"slackrelay/internal/validate"
)

const (
	routePostMessage    = "chat.postMessage"
	routeUpdate         = "chat.update"
	routeReactionAdd    = "reactions.add"
	routeReactionRemove = "reactions.remove"
	routePermalink      = "chat.getPermalink"

	updateMessageMacro = "EVENT.UPDATE.MESSAGE"
)

var (
	acknowledgedPattern   = regexp.MustCompile(`\backnowledged\b`)
	unacknowledgedPattern = regexp.MustCompile(`\bunacknowledged\b`)
	closedPattern         = regexp.MustCompile(`\bclosed\b`)
)

// Correlator talks to the Slack Web API and keeps follow-up events attached to the first message.
type Correlator struct {
	client   *transport.Client
	log      logging.Sink
	settings Settings
}

// NewCorrelator creates a correlator.
// Params: transport client, log sink (nil discards), and settings.
// Returns: correlator.
func NewCorrelator(client *transport.Client, log logging.Sink, settings Settings) *Correlator {
	if log == nil {
		log = logging.Discard()
	}
	return &Correlator{client: client, log: log, settings: settings}
}

// Handlers binds lifecycle handlers to one notification.
// Params: notification prepared by CheckParams.
// Returns: dispatch table for event.Registry.Dispatch.
func (c *Correlator) Handlers(n *Notification) event.Registry[Result] {
	problem := func(ctx context.Context, alert event.Alert) (*Result, error) {
		return c.onProblem(ctx, n, alert)
	}
	update := func(ctx context.Context, alert event.Alert) (*Result, error) {
		return c.onUpdate(ctx, n, alert)
	}
	resolve := func(ctx context.Context, alert event.Alert) (*Result, error) {
		return c.onResolve(ctx, n, alert)
	}
	return event.Registry[Result]{
		event.OnAction(event.ActionProblem):   problem,
		event.OnAction(event.ActionUpdate):    update,
		event.OnAction(event.ActionResolve):   resolve,
		event.OnSource(event.SourceDiscovery): problem,
		event.OnSource(event.SourceAutoreg):   problem,
	}
}

// onProblem posts the first message, capturing correlation tags in alarm mode.
func (c *Correlator) onProblem(ctx context.Context, n *Notification, alert event.Alert) (*Result, error) {
	c.logAlert(alert)
	return c.send(ctx, n, routePostMessage, n.Message, n.Mode == ModeAlarm)
}

// onUpdate threads the update note, toggles the acknowledgement reaction, and edits the message.
func (c *Correlator) onUpdate(ctx context.Context, n *Notification, alert event.Alert) (*Result, error) {
	c.logAlert(alert)
	if n.Mode != ModeAlarm {
		return c.send(ctx, n, routePostMessage, n.Message, false)
	}

	channelID, ts, err := priorMessage(n)
	if err != nil {
		return nil, err
	}
	n.Message.Channel = channelID
	n.Message.TS = ts

	note := n.Params.Text("event_update_message")
	if validate.IsMacroSet(note, updateMessageMacro) && !validate.IsEmpty(note) {
		reply := newThreadReply(n.Channel, ts, c.settings.UpdateTitle, note)
		if _, err := c.send(ctx, n, routePostMessage, reply, false); err != nil {
			return nil, err
		}
	}

	action := n.Params.Text("event_update_action")
	marker := Reaction{Channel: channelID, Timestamp: ts, Name: c.settings.Reaction}
	if acknowledgedPattern.MatchString(action) {
		if _, err := c.send(ctx, n, routeReactionAdd, marker, false); err != nil {
			return nil, err
		}
	}
	if unacknowledgedPattern.MatchString(action) {
		if _, err := c.send(ctx, n, routeReactionRemove, marker, false); err != nil {
			return nil, err
		}
	}

	if closedPattern.MatchString(action) {
		return &Result{Tags: Tags{}, Closed: true}, nil
	}
	return c.send(ctx, n, routeUpdate, n.Message, false)
}

// onResolve repaints the message with the resolve color.
func (c *Correlator) onResolve(ctx context.Context, n *Notification, alert event.Alert) (*Result, error) {
	c.logAlert(alert)
	for i := range n.Message.Attachments {
		n.Message.Attachments[i].Color = c.settings.ResolveColor
	}
	if n.Mode != ModeAlarm {
		return c.send(ctx, n, routePostMessage, n.Message, false)
	}

	channelID, ts, err := priorMessage(n)
	if err != nil {
		return nil, err
	}
	n.Message.Channel = channelID
	n.Message.TS = ts
	return c.send(ctx, n, routeUpdate, n.Message, false)
}

func (c *Correlator) logAlert(alert event.Alert) {
	c.log.Log(logging.LevelInfo, fmt.Sprintf("Source: %s; Event: %s", alert.Source, alert.Action))
}

// priorMessage finds the channel id and timestamp of the first message.
// Params: notification with rehydrated tags.
// Returns: channel id, timestamp, or missing-field failure.
func priorMessage(n *Notification) (string, string, error) {
	channelID, ok := n.Tags.Lookup(TagChannelID, n.Channel)
	if !ok {
		return "", "", failure.Errorf(failure.KindMissingField, "event tag %q is missing", TagKey{Kind: TagChannelID, Channel: n.Channel})
	}
	ts, ok := n.Tags.Lookup(TagMessageTS, n.Channel)
	if !ok {
		return "", "", failure.Errorf(failure.KindMissingField, "event tag %q is missing", TagKey{Kind: TagMessageTS, Channel: n.Channel})
	}
	return channelID, ts, nil
}

// apiResponse is a decoded Slack Web API reply.
type apiResponse map[string]any

// ok reports whether the reply carries "ok": true.
func (r apiResponse) ok() bool {
	flag, isBool := r["ok"].(bool)
	return isBool && flag
}

// text returns a string field.
func (r apiResponse) text(key string) (string, bool) {
	value, ok := r[key].(string)
	return value, ok
}

// send posts payload to route and optionally captures correlation tags.
// Params: context, notification, API route, payload, and capture flag.
// Returns: result with captured or empty tags, or remote/transport failure.
func (c *Correlator) send(ctx context.Context, n *Notification, route string, payload any, capture bool) (*Result, error) {
	response, err := c.call(ctx, n, "post", route, payload)
	if err != nil {
		return nil, err
	}
	if !capture {
		return &Result{Tags: Tags{}}, nil
	}

	ts, ok := response.text("ts")
	if !ok {
		return nil, failure.New(failure.KindMissingField, "Message timestamp is missed from the JSON response")
	}
	channelID, ok := response.text("channel")
	if !ok {
		return nil, failure.New(failure.KindMissingField, "Channel id is missed from the JSON response")
	}
	link, err := c.permalink(ctx, n, channelID, ts)
	if err != nil {
		return nil, err
	}
	return &Result{Tags: Tags{
		{Kind: TagMessageTS, Channel: n.Channel}:   ts,
		{Kind: TagChannelID, Channel: n.Channel}:   channelID,
		{Kind: TagMessageLink, Channel: n.Channel}: link,
	}}, nil
}

// permalink fetches the permanent URL of a posted message.
// Params: context, notification, channel id, and message timestamp.
// Returns: permalink or remote/missing-field failure.
func (c *Correlator) permalink(ctx context.Context, n *Notification, channelID, ts string) (string, error) {
	query := url.Values{}
	query.Set("channel", channelID)
	query.Set("message_ts", ts)
	response, err := c.call(ctx, n, "get", routePermalink+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	link, ok := response.text("permalink")
	if !ok {
		return "", failure.New(failure.KindMissingField, "Permalink is missed from the JSON response")
	}
	return link, nil
}

// call performs one authorized API request and checks status and ok flag.
// Params: context, notification (token), method, route with optional query, and payload.
// Returns: decoded reply or categorized failure.
func (c *Correlator) call(ctx context.Context, n *Notification, method, route string, payload any) (apiResponse, error) {
	headers := map[string]string{
		"Content-Type":  "application/json; charset=utf-8;",
		"Authorization": "Bearer " + n.Token,
	}

	var response apiResponse
	status, err := c.client.JSON(ctx, method, c.settings.APIBase+route, headers, payload, &response)
	if err != nil {
		return nil, err
	}
	if status == 200 && response.ok() {
		return response, nil
	}

	c.log.Log(logging.LevelInfo, fmt.Sprintf("HTTP code: %d", status))
	if message, ok := response.text("error"); ok {
		return nil, failure.New(failure.KindRemoteAPI, "Endpoint response:"+message)
	}
	return nil, failure.New(failure.KindUnknownRemote, "Unknown error. Check debug log for more information.")
}
