package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type staticAdapter struct {
	name string
}

func (a staticAdapter) Name() string { return a.name }

func (a staticAdapter) Complete(_ context.Context, _ Request) (Response, error) {
	return Response{Message: Assistant("ok from " + a.name)}, nil
}

func TestClientRoutesToDefaultProvider(t *testing.T) {
	c := NewClient()
	c.Register(staticAdapter{name: "first"})
	c.Register(staticAdapter{name: "second"})

	resp, err := c.Complete(context.Background(), Request{Model: "m", Messages: []Message{User("hi")}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := resp.Message.Text(); got != "ok from first" {
		t.Errorf("routed to %q, want first registered adapter", got)
	}

	c.SetDefaultProvider("second")
	resp, err = c.Complete(context.Background(), Request{Model: "m", Messages: []Message{User("hi")}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := resp.Message.Text(); got != "ok from second" {
		t.Errorf("routed to %q after SetDefaultProvider", got)
	}
}

func TestClientUnknownProviderListsRegistered(t *testing.T) {
	c := NewClient()
	c.Register(staticAdapter{name: "anthropic"})

	_, err := c.Complete(context.Background(), Request{
		Provider: "nope",
		Model:    "m",
		Messages: []Message{User("hi")},
	})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *ConfigurationError", err)
	}
	if !strings.Contains(err.Error(), "unknown provider: nope") {
		t.Errorf("error = %q", err)
	}
	if !strings.Contains(err.Error(), "registered: anthropic") {
		t.Errorf("error = %q, want registered provider list", err)
	}
}

func TestProviderNamesSorted(t *testing.T) {
	c := NewClient()
	if names := c.ProviderNames(); names != nil {
		t.Errorf("empty client names = %v, want nil", names)
	}

	c.Register(staticAdapter{name: "zeta"})
	c.Register(staticAdapter{name: "alpha"})
	got := c.ProviderNames()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("ProviderNames() = %v, want sorted [alpha zeta]", got)
	}
}
