package fs

import "time"

// SetClock replaces the trash clock.
func (t *Trash) SetClock(now func() time.Time) {
	t.now = now
}
