package sox

import (
	"bms-core/bmsconfig"
	"bms-core/diag"
	"bms-core/external"
	"bms-core/telemetry"
	"bms-core/x/mathx"
)

const socScale = 10000 // SocMeanHundredths==10000 means 100.00%

// Estimator is the SOX estimator: SOC bookkeeping plus the SOF curve
// set. None of its operations fail; every input is read through
// telemetry and every output is unconditionally saturated.
type Estimator struct {
	store     *telemetry.Store
	nvm       external.NVM
	diagPlane *diag.Plane
	cv        curveSet

	lastCurrentTs uint32
	ccInit        bool
	ccScaling     int64
}

// NewEstimator builds an Estimator, seeding SOC from non-volatile
// storage (or 50% if NVM has nothing recorded yet).
func NewEstimator(store *telemetry.Store, nvm external.NVM, diagPlane *diag.Plane) *Estimator {
	e := &Estimator{store: store, nvm: nvm, diagPlane: diagPlane, cv: newCurveSet()}
	min, max, mean, ok := nvm.GetSOC()
	if !ok {
		min, max, mean = socScale/2, socScale/2, socScale/2
	}
	sox := store.SOX().Read()
	sox.SocMinHundredths = min
	sox.SocMaxHundredths = max
	sox.SocMeanHundredths = mean
	store.SOX().Write(sox)
	return e
}

func capacityAmpSeconds() int64 {
	return int64(bmsconfig.CellCapacityMilliAh) * 3600 / 1000
}

func signConvention() int64 {
	if bmsconfig.PositiveIsDischarge {
		return 1
	}
	return -1
}

// Trigger runs one estimator cycle: SOC integration (only when a new
// current sample has arrived) followed by an unconditional SOF
// recompute from the latest voltage/SOC/temperature/contactor readings.
func (e *Estimator) Trigger(nowMs uint32) {
	e.diagPlane.SysMonNotify(diag.ModuleSOX, nowMs)

	cur := e.store.Current().Read()
	if cur.TimestampMs != e.lastCurrentTs {
		e.updateSOC(cur)
		e.lastCurrentTs = cur.TimestampMs
	}

	sox := e.store.SOX().Read()
	mm := e.store.MinMax().Read()
	cf := e.store.ContactorFeedback().Read()

	out := e.computeSOF(e.cv, mm.MinMilliV, mm.MaxMilliV, sox.SocMeanHundredths, mm.MinDeciC, mm.MaxDeciC, cf.Bits)
	sox.SofContinuousDischargeMilliA = out.SofContinuousDischargeMilliA
	sox.SofPeakDischargeMilliA = out.SofPeakDischargeMilliA
	sox.SofContinuousChargeMilliA = out.SofContinuousChargeMilliA
	sox.SofPeakChargeMilliA = out.SofPeakChargeMilliA
	sox.Stamp = sox.Stamp.Advance(nowMs)
	e.store.SOX().Write(sox)

	e.nvm.SetSOC(sox.SocMinHundredths, sox.SocMaxHundredths, sox.SocMeanHundredths)
}

func (e *Estimator) updateSOC(cur telemetry.Current) {
	sox := e.store.SOX().Read()
	sign := signConvention()

	if !cur.CounterPresent {
		dt := int64(cur.TimestampMs) - int64(cur.PreviousTimestampMs)
		if dt <= 0 {
			return
		}
		delta := sign * int64(cur.MilliA) * dt * socScale / (3_600_000 * int64(bmsconfig.CellCapacityMilliAh))
		sox.SocMeanHundredths = saturateSOC(sox.SocMeanHundredths - delta)
		sox.SocMinHundredths = saturateSOC(sox.SocMinHundredths - delta)
		sox.SocMaxHundredths = saturateSOC(sox.SocMaxHundredths - delta)
		e.store.SOX().Write(sox)
		return
	}

	counter := cur.DischargeAs - cur.ChargeAs
	capAs := capacityAmpSeconds()
	if !e.ccInit {
		e.ccScaling = sox.SocMeanHundredths + sign*socScale*counter/capAs
		e.ccInit = true
	}
	mean := e.ccScaling - sign*socScale*counter/capAs
	mean = saturateSOC(mean)
	sox.SocMeanHundredths = mean
	sox.SocMinHundredths = mean
	sox.SocMaxHundredths = mean
	e.store.SOX().Write(sox)
}

func saturateSOC(v int64) int32 {
	return int32(mathx.Clamp(v, int64(0), int64(socScale)))
}
