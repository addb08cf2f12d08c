package publishers

import (
	"context"
	"errors"
	"testing"
)

type stubPublisher struct {
	id    string
	typ   string
	err   error
	calls int
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	ok := &stubPublisher{id: "ok", typ: "http"}
	bad := &stubPublisher{id: "bad", typ: "sqs", err: errors.New("failed")}
	fanout := NewFanout([]Publisher{ok, bad})

	count, err := fanout.Publish(context.Background(), Event{SystemID: 12345})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("expected every publisher to be called once, got ok=%d bad=%d", ok.calls, bad.calls)
	}
}

func TestFanoutSkipsNilPublishers(t *testing.T) {
	fanout := NewFanout([]Publisher{nil, &stubPublisher{id: "only", typ: "http"}})
	if fanout.Size() != 1 {
		t.Fatalf("expected size 1, got %d", fanout.Size())
	}

	count, err := fanout.Publish(context.Background(), Event{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com", Method: "POST", TimeoutSeconds: 2}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 {
		t.Fatalf("expected 1 publisher, got %d", len(pubs))
	}
	if pubs[0].Type() != TypeHTTP {
		t.Fatalf("expected http publisher, got %s", pubs[0].Type())
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	reg := DefaultRegistry()
	_, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "x", Type: "carrier-pigeon"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown publisher type")
	}
}
