package world

// Tweener blends unit render positions between the previous and current
// tick for variable-rate presentation. It touches only the Render fields;
// authoritative positions are never read back from it.
type Tweener struct {
	st   *State
	pre  map[UnitID]tweenPos
	post map[UnitID]tweenPos
}

type tweenPos struct {
	x, y float64
}

func NewTweener(st *State) *Tweener {
	return &Tweener{
		st:   st,
		pre:  make(map[UnitID]tweenPos),
		post: make(map[UnitID]tweenPos),
	}
}

// Reset discards interpolation state. Called after Restore on a pacing
// switch so the next drawn tick starts from fresh snapshots.
func (t *Tweener) Reset() {
	clear(t.pre)
	clear(t.post)
}

// PreTick snapshots authoritative positions before a tick that will be drawn.
func (t *Tweener) PreTick() {
	t.snapshot(t.pre)
}

// PostTick snapshots authoritative positions after that tick.
func (t *Tweener) PostTick() {
	t.snapshot(t.post)
}

// Tween writes render positions blended between the two snapshots.
// alpha 0 lands on the pre-tick position, alpha 1 on the post-tick one.
// Units that appeared mid-tick snap to their post position.
func (t *Tweener) Tween(alpha float64) {
	for id, to := range t.post {
		u := t.st.Unit(id)
		if u == nil {
			continue
		}
		from, ok := t.pre[id]
		if !ok {
			u.RenderX, u.RenderY = to.x, to.y
			continue
		}
		u.RenderX = from.x + (to.x-from.x)*alpha
		u.RenderY = from.y + (to.y-from.y)*alpha
	}
}

// Restore snaps every unit's render position back to its authoritative
// cell, erasing any partial blend.
func (t *Tweener) Restore() {
	for _, u := range t.st.units {
		u.RenderX = float64(u.X)
		u.RenderY = float64(u.Y)
	}
}

func (t *Tweener) snapshot(into map[UnitID]tweenPos) {
	clear(into)
	for id, u := range t.st.units {
		into[id] = tweenPos{x: float64(u.X), y: float64(u.Y)}
	}
}
