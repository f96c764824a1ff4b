package sox

import (
	"bms-core/bmsconfig"
	"bms-core/telemetry"
	"bms-core/x/mathx"
)

// curveSet holds every precomputed derating curve. Built once by
// newCurveSet (the SOF_Init equivalent) and reused every tick.
type curveSet struct {
	voltDischCont, voltDischPeak   Curve
	voltChargeCont, voltChargePeak Curve

	socDischCont, socDischPeak   Curve
	socChargeCont, socChargePeak Curve

	tempDischContLow, tempDischContHigh   Curve
	tempDischPeakLow, tempDischPeakHigh   Curve
	tempChargeContLow, tempChargeContHigh Curve
	tempChargePeakLow, tempChargePeakHigh Curve
}

const peakMultiplier = 3 // peak current allowance over continuous, e.g. for a brief pulse

func newCurveSet() curveSet {
	contDischA := bmsconfig.CellCurrentMaxDischargeMilliA
	contChargeA := bmsconfig.CellCurrentMaxChargeMilliA
	peakDischA := contDischA * peakMultiplier
	peakChargeA := contChargeA * peakMultiplier

	socDischCont := NewCurve(500, 1500, contDischA, false)     // 5.00%..15.00%
	socDischPeak := NewCurve(500, 1500, peakDischA, false)
	socChargeCont := NewCurve(8500, 9500, contChargeA, true) // 85.00%..95.00%
	socChargePeak := NewCurve(8500, 9500, peakChargeA, true)

	voltDischCont := NewCurve(bmsconfig.CellVoltMinMilliV, bmsconfig.CellVoltMinMilliV+200, contDischA, false)
	voltDischPeak := NewCurve(bmsconfig.CellVoltMinMilliV, bmsconfig.CellVoltMinMilliV+200, peakDischA, false)
	voltChargeCont := NewCurve(bmsconfig.CellVoltMaxMilliV-200, bmsconfig.CellVoltMaxMilliV, contChargeA, true)
	voltChargePeak := NewCurve(bmsconfig.CellVoltMaxMilliV-200, bmsconfig.CellVoltMaxMilliV, peakChargeA, true)

	// Preserved quirk: the continuous discharge voltage curve's offset is
	// derived from the SOC curve's slope and limit rather than its own,
	// the edges (at/below limit, at/above cutoff) are unaffected since
	// those are decided by direct comparison, but the ramp between them
	// is wrong.
	voltDischCont.offsetQ16 = socDischCont.slopeQ16 * int64(socDischCont.limit)

	return curveSet{
		voltDischCont: voltDischCont, voltDischPeak: voltDischPeak,
		voltChargeCont: voltChargeCont, voltChargePeak: voltChargePeak,

		socDischCont: socDischCont, socDischPeak: socDischPeak,
		socChargeCont: socChargeCont, socChargePeak: socChargePeak,

		tempDischContLow:  NewCurve(bmsconfig.CellTempMinDischargeDeciC, bmsconfig.CellTempMinDischargeDeciC+50, contDischA, false),
		tempDischContHigh: NewCurve(bmsconfig.CellTempMaxDischargeDeciC-50, bmsconfig.CellTempMaxDischargeDeciC, contDischA, true),
		tempDischPeakLow:  NewCurve(bmsconfig.CellTempMinDischargeDeciC, bmsconfig.CellTempMinDischargeDeciC+50, peakDischA, false),
		tempDischPeakHigh: NewCurve(bmsconfig.CellTempMaxDischargeDeciC-50, bmsconfig.CellTempMaxDischargeDeciC, peakDischA, true),

		tempChargeContLow:  NewCurve(bmsconfig.CellTempMinChargeDeciC, bmsconfig.CellTempMinChargeDeciC+50, contChargeA, false),
		tempChargeContHigh: NewCurve(bmsconfig.CellTempMaxChargeDeciC-50, bmsconfig.CellTempMaxChargeDeciC, contChargeA, true),
		tempChargePeakLow:  NewCurve(bmsconfig.CellTempMinChargeDeciC, bmsconfig.CellTempMinChargeDeciC+50, peakChargeA, false),
		tempChargePeakHigh: NewCurve(bmsconfig.CellTempMaxChargeDeciC-50, bmsconfig.CellTempMaxChargeDeciC, peakChargeA, true),
	}
}

func min3(a, b, c int32) int32 {
	return mathx.Min(mathx.Min(a, b), c)
}

// mainContactorsClosed interprets the raw contactor feedback bitfield:
// bits 0 and 1 are the pack main contactors.
func mainContactorsClosed(bits uint32) bool {
	const mask = 0b11
	return bits&mask == mask
}

// computeSOF derives the four output currents as the pointwise minimum
// of the voltage, SOC, and temperature curves, forced to zero whenever
// the main contactors are not closed. Discharge curves are evaluated
// against the pack minimum voltage/temperature (the worst case nearer
// empty/cold); charge curves against the pack maximum (nearer full/hot).
// Both directions consult both temperature extremes.
func (e *Estimator) computeSOF(cv curveSet, minVoltMilliV, maxVoltMilliV, socHundredths, minTempDeciC, maxTempDeciC int32, contactorBits uint32) telemetry.SOX {
	var out telemetry.SOX
	if !mainContactorsClosed(contactorBits) {
		return out
	}

	tempDischCont := mathx.Min(cv.tempDischContLow.Eval(minTempDeciC), cv.tempDischContHigh.Eval(maxTempDeciC))
	tempDischPeak := mathx.Min(cv.tempDischPeakLow.Eval(minTempDeciC), cv.tempDischPeakHigh.Eval(maxTempDeciC))
	tempChargeCont := mathx.Min(cv.tempChargeContLow.Eval(minTempDeciC), cv.tempChargeContHigh.Eval(maxTempDeciC))
	tempChargePeak := mathx.Min(cv.tempChargePeakLow.Eval(minTempDeciC), cv.tempChargePeakHigh.Eval(maxTempDeciC))

	out.SofContinuousDischargeMilliA = min3(cv.voltDischCont.Eval(minVoltMilliV), cv.socDischCont.Eval(socHundredths), tempDischCont)
	out.SofPeakDischargeMilliA = min3(cv.voltDischPeak.Eval(minVoltMilliV), cv.socDischPeak.Eval(socHundredths), tempDischPeak)
	out.SofContinuousChargeMilliA = min3(cv.voltChargeCont.Eval(maxVoltMilliV), cv.socChargeCont.Eval(socHundredths), tempChargeCont)
	out.SofPeakChargeMilliA = min3(cv.voltChargePeak.Eval(maxVoltMilliV), cv.socChargePeak.Eval(socHundredths), tempChargePeak)

	if out.SofContinuousDischargeMilliA > out.SofPeakDischargeMilliA {
		out.SofPeakDischargeMilliA = out.SofContinuousDischargeMilliA
	}
	if out.SofContinuousChargeMilliA > out.SofPeakChargeMilliA {
		out.SofPeakChargeMilliA = out.SofContinuousChargeMilliA
	}
	return out
}
