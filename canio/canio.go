// Package canio bridges the telemetry plane to the process-wide
// message bus, standing in for the CAN transport whose wire framing
// §1 places out of scope. It consumes already-decoded request codes
// from bus topics (as if a separate CAN-frame decoder task had posted
// them) and republishes retained snapshots of supervisor/estimator/
// balancing state for external observers, the same shape the
// teacher's config service uses to republish decoded values.
package canio

import (
	"context"
	"time"

	"bms-core/bal"
	"bms-core/bus"
	"bms-core/telemetry"
	"bms-core/x/fmtx"
)

// Topics this bridge owns. Requests are posted by an external decoder;
// reports are published by this bridge for external consumers.
var (
	TopicRequestState     = bus.T("bms", "request", "state")
	TopicRequestBalancing = bus.T("bms", "request", "balancing")

	TopicReportSystemState = bus.T("bms", "report", "state")
	TopicReportSOX         = bus.T("bms", "report", "sox")
	TopicReportBalancing   = bus.T("bms", "report", "balancing")
)

// Bridge couples one telemetry.Store (and the balancing engine it
// feeds override requests to) to one bus connection.
type Bridge struct {
	store     *telemetry.Store
	balEngine *bal.Engine
	conn      *bus.Connection

	publishEvery time.Duration
}

// NewBridge constructs a Bridge. publishEvery controls how often
// reports are republished; the teacher's services use a similar
// ticker-driven interval (see services/heartbeat).
func NewBridge(store *telemetry.Store, balEngine *bal.Engine, conn *bus.Connection, publishEvery time.Duration) *Bridge {
	if publishEvery <= 0 {
		publishEvery = time.Second
	}
	return &Bridge{store: store, balEngine: balEngine, conn: conn, publishEvery: publishEvery}
}

// Start launches the bridge's request-consuming and report-publishing
// loop in a goroutine, stopping when ctx is cancelled, the same
// Start(ctx, conn) shape as the teacher's service packages.
// The request subscriptions are in place before Start returns, so a
// request published right after Start is not lost.
func (b *Bridge) Start(ctx context.Context) {
	stateSub := b.conn.Subscribe(TopicRequestState)
	balSub := b.conn.Subscribe(TopicRequestBalancing)
	go b.run(ctx, stateSub, balSub)
}

func (b *Bridge) run(ctx context.Context, stateSub, balSub *bus.Subscription) {
	defer b.conn.Unsubscribe(stateSub)
	defer b.conn.Unsubscribe(balSub)

	ticker := time.NewTicker(b.publishEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-stateSub.Channel():
			b.handleStateRequest(m)
		case m := <-balSub.Channel():
			b.handleBalancingRequest(m)
		case <-ticker.C:
			b.publishReports()
		}
	}
}

func (b *Bridge) handleStateRequest(m *bus.Message) {
	code, ok := m.Payload.(telemetry.StateRequestCode)
	if !ok {
		return
	}
	sr := b.store.StateRequest().Read()
	sr.Code = code
	b.store.StateRequest().Write(sr)
}

func (b *Bridge) handleBalancingRequest(m *bus.Message) {
	code, ok := m.Payload.(telemetry.BalRequestCode)
	if !ok {
		return
	}
	bc := b.store.BalancingControl().Read()
	bc.ExternalReq = code
	b.store.BalancingControl().Write(bc)
	b.balEngine.PostRequest(code)
}

// publishReports republishes the three externally observable records
// as retained messages, so a late subscriber (a diagnostic UI, a CAN
// gateway task) sees the latest value immediately on subscribe.
func (b *Bridge) publishReports() {
	ss := b.store.SystemState().Read()
	b.conn.Publish(b.conn.NewMessage(TopicReportSystemState, ss, true))

	sox := b.store.SOX().Read()
	b.conn.Publish(b.conn.NewMessage(TopicReportSOX, sox, true))

	bc := b.store.BalancingControl().Read()
	b.conn.Publish(b.conn.NewMessage(TopicReportBalancing, bc, true))
}

// Summary renders a one-line human-readable dump of the pack's
// externally visible state, the way the teacher's main.go Logger
// formats telemetry for a UART/console mirror; host builds use
// fmt-backed fmtx.Sprintf, embedded builds the allocation-light one.
func Summary(store *telemetry.Store) string {
	ss := store.SystemState().Read()
	sox := store.SOX().Read()
	return fmtx.Sprintf("state=%d general_error=%t soc=%d.%02d%% sof_disc_cont=%dmA",
		int(ss.State), ss.Errors.GeneralError,
		int(sox.SocMeanHundredths)/100, int(sox.SocMeanHundredths)%100,
		int(sox.SofContinuousDischargeMilliA))
}
