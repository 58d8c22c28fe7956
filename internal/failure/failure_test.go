package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "message", err: New(KindConfiguration, "bad token"), want: "bad token"},
		{name: "formatted", err: Errorf(KindMissingField, "field %q is missing", "channel"), want: `field "channel" is missing`},
		{name: "wrapped", err: Wrap(KindTransport, errors.New("eof"), "Failed to parse response"), want: "Failed to parse response: eof"},
		{name: "cause only", err: &Error{Kind: KindRemoteAPI, Err: errors.New("channel_not_found")}, want: "channel_not_found"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	t.Parallel()

	base := New(KindRemoteAPI, "not_in_channel")
	wrapped := fmt.Errorf("send: %w", base)

	if KindOf(wrapped) != KindRemoteAPI {
		t.Fatalf("unexpected kind: %v", KindOf(wrapped))
	}
	if !errors.Is(wrapped, ErrRemoteAPI) {
		t.Fatalf("expected match against ErrRemoteAPI")
	}
	if errors.Is(wrapped, ErrTransport) {
		t.Fatalf("unexpected match against ErrTransport")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("foreign errors must be unknown")
	}
}

func TestWrapNil(t *testing.T) {
	t.Parallel()

	if Wrap(KindConfiguration, nil, "ignored") != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	if KindUnsupportedSource.String() != "unsupported_source" || Kind(99).String() != "unknown" {
		t.Fatalf("unexpected kind labels")
	}
}
