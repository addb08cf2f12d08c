package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gridlight-hq/pvharvest/pkg/publishers"
	"github.com/gridlight-hq/pvharvest/pkg/pvoutput"
	"github.com/gridlight-hq/pvharvest/pkg/systems"
)

// fakeClient returns preset readings or errors.
type fakeClient struct {
	status      pvoutput.Status
	statusErr   error
	system      pvoutput.System
	systemErr   error
	systemCalls int
	closed      bool
}

func (f *fakeClient) Status(context.Context) (pvoutput.Status, error) {
	if f.statusErr != nil {
		return pvoutput.Status{}, f.statusErr
	}
	return f.status, nil
}

func (f *fakeClient) System(context.Context) (pvoutput.System, error) {
	f.systemCalls++
	if f.systemErr != nil {
		return pvoutput.System{}, f.systemErr
	}
	return f.system, nil
}

func (f *fakeClient) Close() { f.closed = true }

// fakePublisher records published events and can inject errors.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

// fakeDeduper tracks seen snapshot ids.
type fakeDeduper struct {
	mu      sync.Mutex
	seen    map[string]bool
	seenErr error
}

func (f *fakeDeduper) SeenSnapshot(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenErr != nil {
		return false, f.seenErr
	}
	return f.seen[id], nil
}

func (f *fakeDeduper) MarkSnapshot(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[id] = true
	return nil
}

func factoryFor(client StatusClient) ClientFactory {
	return func(systems.System) (StatusClient, error) {
		return client, nil
	}
}

func testStatus() pvoutput.Status {
	power := 1563
	return pvoutput.Status{
		ReportedAt:      time.Date(2021, 12, 22, 18, 0, 0, 0, time.UTC),
		PowerGeneration: &power,
	}
}

func TestRunPublishesSnapshot(t *testing.T) {
	client := &fakeClient{status: testStatus()}
	pub := &fakePublisher{}
	deduper := &fakeDeduper{}

	svc := NewService(factoryFor(client), pub, nil, deduper, nil)
	cfg := systems.System{ID: "roof", Name: "Roof Array", SystemID: 12345, APIKey: "k"}

	if err := svc.Run(context.Background(), []systems.System{cfg}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.SystemID != 12345 || evt.SystemName != "Roof Array" {
		t.Fatalf("unexpected event metadata: %+v", evt)
	}
	if evt.Snapshot.PowerGenerationW == nil || *evt.Snapshot.PowerGenerationW != 1563 {
		t.Fatalf("unexpected snapshot power: %+v", evt.Snapshot)
	}
	if !deduper.seen[evt.Snapshot.ID] {
		t.Fatalf("snapshot was not marked after publish")
	}
}

func TestRunSkipsSeenSnapshot(t *testing.T) {
	client := &fakeClient{status: testStatus()}
	pub := &fakePublisher{}
	cfg := systems.System{ID: "roof", Name: "Roof Array", SystemID: 12345, APIKey: "k"}

	deduper := &fakeDeduper{}
	svc := NewService(factoryFor(client), pub, nil, deduper, nil)
	if err := svc.Run(context.Background(), []systems.System{cfg}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := svc.Run(context.Background(), []systems.System{cfg}); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event across runs, got %d", len(pub.events))
	}
}

func TestRunDoesNotMarkOnPublishError(t *testing.T) {
	client := &fakeClient{status: testStatus()}
	pub := &fakePublisher{err: errors.New("sink down")}
	deduper := &fakeDeduper{}

	svc := NewService(factoryFor(client), pub, nil, deduper, nil)
	cfg := systems.System{ID: "roof", Name: "Roof Array", SystemID: 12345, APIKey: "k"}

	err := svc.Run(context.Background(), []systems.System{cfg})
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if len(deduper.seen) != 0 {
		t.Fatalf("snapshot must not be marked when publish fails")
	}
}

func TestRunTreatsNoDataAsIdle(t *testing.T) {
	client := &fakeClient{statusErr: pvoutput.ErrNoData}
	pub := &fakePublisher{}

	svc := NewService(factoryFor(client), pub, nil, &fakeDeduper{}, nil)
	cfg := systems.System{ID: "roof", Name: "Roof Array", SystemID: 12345, APIKey: "k"}

	if err := svc.Run(context.Background(), []systems.System{cfg}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events for system without data")
	}
}

func TestSystemNameLookupIsCached(t *testing.T) {
	client := &fakeClient{
		status: testStatus(),
		system: pvoutput.System{SystemName: "Frenck Solar"},
	}
	pub := &fakePublisher{}
	cfg := systems.System{ID: "roof", SystemID: 12345, APIKey: "k"}

	svc := NewService(factoryFor(client), pub, nil, nil, nil)
	if err := svc.Run(context.Background(), []systems.System{cfg}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := svc.Run(context.Background(), []systems.System{cfg}); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if client.systemCalls != 1 {
		t.Fatalf("expected 1 getsystem call, got %d", client.systemCalls)
	}
	if len(pub.events) == 0 || pub.events[0].SystemName != "Frenck Solar" {
		t.Fatalf("expected resolved system name, got %+v", pub.events)
	}
}

func TestRunAllCancelsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(factoryFor(&fakeClient{status: testStatus()}), &fakePublisher{}, nil, nil, nil)
	errs := svc.runAll(ctx, []systems.System{{ID: "roof", SystemID: 1, APIKey: "k"}})
	if len(errs) != 0 {
		t.Fatalf("expected no errors on cancelled context, got %v", errs)
	}
}

func TestRunRejectsEmptySystems(t *testing.T) {
	svc := NewService(factoryFor(&fakeClient{}), nil, nil, nil, nil)
	if err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error when systems list empty")
	}
}

func TestCloseReleasesClients(t *testing.T) {
	client := &fakeClient{status: testStatus()}
	svc := NewService(factoryFor(client), &fakePublisher{}, nil, nil, nil)
	cfg := systems.System{ID: "roof", Name: "Roof Array", SystemID: 12345, APIKey: "k"}

	if err := svc.Run(context.Background(), []systems.System{cfg}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	svc.Close()
	if !client.closed {
		t.Fatalf("client was not closed")
	}
}
