package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedSeries(t *testing.T) {
	t.Parallel()

	m := New("slackrelay")
	m.ObserveInvocation("Trigger", "Problem", nil, 20*time.Millisecond)
	m.ObserveInvocation("", "", errors.New("boom"), time.Millisecond)
	m.ObserveRemoteCall("post", 200, 5*time.Millisecond, nil)
	m.ObserveRemoteCall("get", 0, time.Millisecond, errors.New("dial"))
	m.ObserveTagStore("write", nil)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(recorder.Result().Body)
	text := string(body)

	for _, want := range []string{
		`slackrelay_invocations_total{action="Problem",outcome="success",source="Trigger"} 1`,
		`slackrelay_invocations_total{action="unknown",outcome="failure",source="unknown"} 1`,
		`slackrelay_remote_calls_total{method="post",status="200"} 1`,
		`slackrelay_remote_calls_total{method="get",status="error"} 1`,
		`slackrelay_tag_store_operations_total{operation="write",outcome="success"} 1`,
		`slackrelay_invocation_duration_seconds_count{outcome="success"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}
