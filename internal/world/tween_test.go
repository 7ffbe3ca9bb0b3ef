package world

import "testing"

func TestTweenBlendsBetweenSnapshots(t *testing.T) {
	st := NewState(testParams())
	u := st.AddUnit(1, 1, 10, 10)
	tw := NewTweener(st)

	tw.PreTick()
	u.X, u.Y = 14, 10 // the tick moves the unit four cells east
	tw.PostTick()

	tw.Tween(0)
	if u.RenderX != 10 || u.RenderY != 10 {
		t.Errorf("alpha 0: render = (%v, %v), want pre-tick (10, 10)", u.RenderX, u.RenderY)
	}

	tw.Tween(0.5)
	if u.RenderX != 12 || u.RenderY != 10 {
		t.Errorf("alpha 0.5: render = (%v, %v), want midpoint (12, 10)", u.RenderX, u.RenderY)
	}

	tw.Tween(1)
	if u.RenderX != 14 || u.RenderY != 10 {
		t.Errorf("alpha 1: render = (%v, %v), want post-tick (14, 10)", u.RenderX, u.RenderY)
	}
}

func TestTweenSnapsUnitsSpawnedMidTick(t *testing.T) {
	st := NewState(testParams())
	tw := NewTweener(st)

	tw.PreTick()
	u := st.AddUnit(1, 1, 5, 7) // spawned during the tick: no pre snapshot
	tw.PostTick()

	tw.Tween(0.25)
	if u.RenderX != 5 || u.RenderY != 7 {
		t.Errorf("render = (%v, %v), want snap to (5, 7)", u.RenderX, u.RenderY)
	}
}

func TestRestoreSnapsToAuthoritative(t *testing.T) {
	st := NewState(testParams())
	u := st.AddUnit(1, 1, 3, 3)
	tw := NewTweener(st)

	tw.PreTick()
	u.X = 6
	tw.PostTick()
	tw.Tween(0.5)

	if u.RenderX == float64(u.X) {
		t.Fatal("tween left render exactly on authoritative; fixture broken")
	}

	tw.Restore()
	if u.RenderX != 6 || u.RenderY != 3 {
		t.Errorf("render = (%v, %v) after restore, want authoritative (6, 3)", u.RenderX, u.RenderY)
	}
}

func TestResetDropsStaleSnapshots(t *testing.T) {
	st := NewState(testParams())
	u := st.AddUnit(1, 1, 0, 0)
	tw := NewTweener(st)

	tw.PreTick()
	u.X = 4
	tw.PostTick()
	tw.Restore()
	tw.Reset()

	// With cleared snapshots a tween must not touch render positions.
	tw.Tween(0.5)
	if u.RenderX != 4 {
		t.Errorf("render x = %v after reset+tween, want untouched 4", u.RenderX)
	}
}
