package telemetry

import "testing"

func TestBlock_WriteRead_RoundTrip(t *testing.T) {
	b := NewBlock[Current](Double)
	v := Current{MilliA: 1500, Direction: DirectionDischarge}
	b.Write(v)
	got := b.Read()
	if got != v {
		t.Fatalf("Read() = %+v, want %+v", got, v)
	}
}

func TestBlock_ZeroValueBeforeAnyWrite(t *testing.T) {
	b := NewBlock[MinMax](Single)
	got := b.Read()
	var zero MinMax
	if got != zero {
		t.Fatalf("unwritten block = %+v, want zero value", got)
	}
}

func TestBlock_Post_CommitsOnTick(t *testing.T) {
	b := NewBlock[SOX](Single)
	b.Post(SOX{SocMeanHundredths: 5000})
	if got := b.Read(); got.SocMeanHundredths != 0 {
		t.Fatalf("Read() before tick = %+v, want zero value unaffected", got)
	}
	b.tick()
	if got := b.Read(); got.SocMeanHundredths != 5000 {
		t.Fatalf("Read() after tick = %+v, want SocMeanHundredths=5000", got)
	}
}

func TestBlock_Post_LatestWins(t *testing.T) {
	b := NewBlock[Current](Double)
	b.Post(Current{MilliA: 1})
	b.Post(Current{MilliA: 2})
	b.tick()
	if got := b.Read(); got.MilliA != 2 {
		t.Fatalf("Read() = %+v, want MilliA=2 (latest post wins)", got)
	}
}

func TestStore_Tick_DrainsAllBlocks(t *testing.T) {
	s := NewStore()
	s.Current().Post(Current{MilliA: 42})
	s.MinMax().Post(MinMax{MinMilliV: 100})
	s.Tick()
	if got := s.Current().Read().MilliA; got != 42 {
		t.Fatalf("Current().Read().MilliA = %d, want 42", got)
	}
	if got := s.MinMax().Read().MinMilliV; got != 100 {
		t.Fatalf("MinMax().Read().MinMilliV = %d, want 100", got)
	}
}

func TestStamp_Advance(t *testing.T) {
	s := Stamp{TimestampMs: 100, PreviousTimestampMs: 90}
	next := s.Advance(150)
	if next.TimestampMs != 150 || next.PreviousTimestampMs != 100 {
		t.Fatalf("Advance(150) = %+v, want {150 100}", next)
	}
	if next.TimestampMs < next.PreviousTimestampMs {
		t.Fatalf("invariant violated: %+v", next)
	}
}
