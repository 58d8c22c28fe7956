package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"slackrelay/internal/config"
	"slackrelay/internal/tagstore"
	"slackrelay/test/testutil"
)

const triggerTemplate = `{
	"event_source": "0",
	"event_value": "%s",
	"event_update_status": "%s",
	"event_nseverity": "3",
	"event_update_message": "%s",
	"event_update_action": "%s",
	"event_tags": "[]",
	"alert_subject": "Problem: queue lag",
	"alert_message": "Consumer lag above threshold",
	"zabbix_url": "https://zabbix.example.com/",
	"trigger_id": "501",
	"event_id": "9001",
	"bot_token": "xoxb-e2e",
	"channel": "#oncall",
	"slack_mode": "alarm"
}`

func triggerParams(value, status, message, action string) string {
	return fmt.Sprintf(triggerTemplate, value, status, message, action)
}

func TestServiceLifecycleAcrossHTTPAndNATS(t *testing.T) {
	port, err := testutil.FreePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	natsURL, stopNATS := testutil.StartLocalNATSServer(t)
	defer stopNATS()

	slackAPI := newSlackRecorder(t)
	subject := testutil.UniqueName(t, "webhook")
	bucket := testutil.UniqueName(t, "tags")
	service := newServiceFromConfig(t, fmt.Sprintf(`
[log.console]
enabled = true
level = "error"

[slack]
api_base = %q
timeout_sec = 2

[ingest.http]
enabled = true
listen = "127.0.0.1:%d"

[ingest.nats]
enabled = true
url = [%q]
subject = %q

[tags]
backend = "nats"
ttl_sec = 600

[tags.nats]
bucket = %q
`, slackAPI.apiBase(), port, natsURL, subject, bucket))

	cancel, done := runService(t, service)
	waitReady(t, port)

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	response, err := http.Post(baseURL+"/webhook", "application/json", strings.NewReader(triggerParams("1", "0", "", "")))
	if err != nil {
		t.Fatalf("post problem: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if response.StatusCode != http.StatusOK || !strings.Contains(string(body), `"__message_ts_#oncall":"1712000000.000300"`) {
		t.Fatalf("problem: status=%d body=%s", response.StatusCode, body)
	}

	nc, err := nats.Connect(natsURL)
	if err != nil {
		t.Fatalf("connect nats: %v", err)
	}
	defer nc.Close()

	reply, err := nc.Request(subject, []byte(triggerParams("1", "1", "taking a look", "acknowledged")), 5*time.Second)
	if err != nil {
		t.Fatalf("nats ack request: %v", err)
	}
	if reply.Header.Get("Status") != "200" {
		t.Fatalf("ack: status=%s body=%s", reply.Header.Get("Status"), reply.Data)
	}
	reaction := slackAPI.lastBody("reactions.add")
	if !strings.Contains(reaction, `"channel":"C0E2E0001"`) || !strings.Contains(reaction, `"name":"white_check_mark"`) {
		t.Fatalf("reaction not attached to first message: %q", reaction)
	}

	reply, err = nc.Request(subject, []byte(triggerParams("1", "1", "", "closed")), 5*time.Second)
	if err != nil {
		t.Fatalf("nats close request: %v", err)
	}
	if string(reply.Data) != `{"tags":{}}` {
		t.Fatalf("close: unexpected reply %s", reply.Data)
	}

	store, err := tagstore.NewNATSStore(config.NATSTagsConfig{URL: []string{natsURL}, Bucket: bucket}, 0)
	if err != nil {
		t.Fatalf("open tag store: %v", err)
	}
	defer store.Close()
	tags, err := store.Read(context.Background(), "9001")
	if err != nil {
		t.Fatalf("read tags: %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("closed event must drop stored tags, got %v", tags)
	}

	metrics, err := http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	var scraped bytes.Buffer
	_, _ = scraped.ReadFrom(metrics.Body)
	metrics.Body.Close()
	for _, want := range []string{
		`slackrelay_invocations_total{action="Problem",outcome="success",source="Trigger"} 1`,
		`slackrelay_invocations_total{action="Update",outcome="success",source="Trigger"} 2`,
		`slackrelay_tag_store_operations_total{operation="delete",outcome="success"} 1`,
	} {
		if !strings.Contains(scraped.String(), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	cancel()
	waitServiceStop(t, done)
}

func TestServiceRejectsUpdateWithoutProblem(t *testing.T) {
	port, err := testutil.FreePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	slackAPI := newSlackRecorder(t)
	service := newServiceFromConfig(t, fmt.Sprintf(`
[log.console]
enabled = true
level = "error"

[slack]
api_base = %q

[ingest.http]
listen = "127.0.0.1:%d"
`, slackAPI.apiBase(), port))

	cancel, done := runService(t, service)
	waitReady(t, port)

	response, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/webhook", port), "application/json",
		strings.NewReader(triggerParams("0", "0", "", "")))
	if err != nil {
		t.Fatalf("post resolve: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if response.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", response.StatusCode, body)
	}
	if !strings.Contains(string(body), `__channel_id_#oncall`) {
		t.Fatalf("error must name the missing tag: %s", body)
	}
	if len(slackAPI.methods()) != 0 {
		t.Fatalf("no Slack call expected, got %v", slackAPI.methods())
	}

	cancel()
	waitServiceStop(t, done)
}
