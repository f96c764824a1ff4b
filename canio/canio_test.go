package canio

import (
	"context"
	"testing"
	"time"

	"bms-core/bal"
	"bms-core/bus"
	"bms-core/diag"
	"bms-core/telemetry"
)

func TestBridge_StateRequestReachesTelemetry(t *testing.T) {
	store := telemetry.NewStore()
	plane := diag.NewPlane(store, diag.DefaultChannelTable())
	balEngine := bal.NewEngine(store, plane)

	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	bridge := NewBridge(store, balEngine, conn, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)

	conn.Publish(conn.NewMessage(TopicRequestState, telemetry.StateReqNormal, false))

	deadline := time.After(time.Second)
	for {
		if store.StateRequest().Read().Code == telemetry.StateReqNormal {
			return
		}
		select {
		case <-deadline:
			t.Fatal("state request never reached telemetry store")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestBridge_PublishesRetainedReports(t *testing.T) {
	store := telemetry.NewStore()
	plane := diag.NewPlane(store, diag.DefaultChannelTable())
	balEngine := bal.NewEngine(store, plane)

	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	bridge := NewBridge(store, balEngine, conn, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)

	time.Sleep(30 * time.Millisecond)

	late := b.NewConnection("late-subscriber")
	sub := late.Subscribe(TopicReportSystemState)
	defer late.Unsubscribe(sub)

	select {
	case m := <-sub.Channel():
		if _, ok := m.Payload.(telemetry.SystemState); !ok {
			t.Fatalf("unexpected payload type %T", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected retained report to be delivered immediately on subscribe")
	}
}
