package diag

import (
	"testing"

	"bms-core/telemetry"
)

func newTestPlane() (*Plane, *telemetry.Store) {
	store := telemetry.NewStore()
	return NewPlane(store, DefaultChannelTable()), store
}

func TestNotify_LatchesAtSensitivity(t *testing.T) {
	p, store := newTestPlane()
	for i := 0; i < 2; i++ {
		p.Notify(ChOverVoltage, NOK)
	}
	if store.SystemState().Read().Errors.OverVoltage {
		t.Fatal("flag latched before sensitivity reached")
	}
	p.Notify(ChOverVoltage, NOK) // 3rd consecutive NOK, sensitivity=3
	if !store.SystemState().Read().Errors.OverVoltage {
		t.Fatal("flag not latched at sensitivity")
	}
	if !p.Latched(ChOverVoltage) {
		t.Fatal("Latched() should report true")
	}
}

func TestNotify_OKDoesNotClearLatch(t *testing.T) {
	p, store := newTestPlane()
	for i := 0; i < 3; i++ {
		p.Notify(ChOverVoltage, NOK)
	}
	p.Notify(ChOverVoltage, OK)
	if !store.SystemState().Read().Errors.OverVoltage {
		t.Fatal("OK must not clear a latched flag")
	}
}

func TestNotify_OKResetsCounterBeforeLatch(t *testing.T) {
	p, store := newTestPlane()
	p.Notify(ChOverVoltage, NOK)
	p.Notify(ChOverVoltage, NOK)
	p.Notify(ChOverVoltage, OK) // resets counter to 0
	p.Notify(ChOverVoltage, NOK)
	p.Notify(ChOverVoltage, NOK)
	if store.SystemState().Read().Errors.OverVoltage {
		t.Fatal("flag should not have latched: counter was reset by the OK")
	}
}

func TestNotify_ResetClearsLatch(t *testing.T) {
	p, store := newTestPlane()
	for i := 0; i < 3; i++ {
		p.Notify(ChOverVoltage, NOK)
	}
	p.Notify(ChOverVoltage, RESET)
	if store.SystemState().Read().Errors.OverVoltage {
		t.Fatal("RESET must clear the flag")
	}
	if p.Latched(ChOverVoltage) {
		t.Fatal("RESET must clear the latch")
	}
}

func TestSysMonSweep_MissSetsGeneralError(t *testing.T) {
	p, store := newTestPlane()
	p.SysMonNotify(ModuleBAL, 0)
	p.SysMonSweep(deadlineMs[ModuleBAL] + 1)
	errs := store.SystemState().Read().Errors
	if !errs.SysMonTimeout || !errs.GeneralError {
		t.Fatalf("expected SysMonTimeout and GeneralError set, got %+v", errs)
	}
}

func TestSysMonSweep_NoBeaconYetIsNotAMiss(t *testing.T) {
	p, store := newTestPlane()
	p.SysMonSweep(100000)
	errs := store.SystemState().Read().Errors
	if errs.SysMonTimeout {
		t.Fatal("a module that never beaconed should not trip the sweep")
	}
}

func TestSysMonSweep_WithinDeadlineIsFine(t *testing.T) {
	p, store := newTestPlane()
	p.SysMonNotify(ModuleBMS, 0)
	p.SysMonSweep(deadlineMs[ModuleBMS] - 1)
	if store.SystemState().Read().Errors.SysMonTimeout {
		t.Fatal("sweep within deadline must not flag timeout")
	}
}
