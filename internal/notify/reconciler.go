package notify

import (
	"sync"

	"github.com/nhle/collabtask/internal/model"
)

// Snapshot is the reconciled view: notifications newest first and the
// number of unread ones among them.
type Snapshot struct {
	Items  []model.Notification
	Unread int
}

// Reconciler merges notifications arriving by fetch and by push into one
// de-duplicated list. It is the only state consumers read.
type Reconciler struct {
	mu        sync.Mutex
	items     []model.Notification
	read      map[string]struct{}
	dismissed map[string]struct{}
	subs      map[int]chan Snapshot
	nextSub   int
}

// NewReconciler returns an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		read:      make(map[string]struct{}),
		dismissed: make(map[string]struct{}),
		subs:      make(map[int]chan Snapshot),
	}
}

// Replace installs a fetched page as the new list. Ids already known to be
// read stay read whatever the page says.
func (r *Reconciler) Replace(page []model.Notification) {
	r.mu.Lock()
	seen := make(map[string]struct{}, len(page))
	items := make([]model.Notification, 0, len(page))
	for _, n := range page {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		if _, gone := r.dismissed[n.ID]; gone {
			continue
		}
		seen[n.ID] = struct{}{}
		items = append(items, r.settle(n))
	}
	r.items = items
	r.mu.Unlock()

	r.publish()
}

// Push prepends a pushed notification unless its id is already listed.
// It reports whether the list changed.
func (r *Reconciler) Push(n model.Notification) bool {
	r.mu.Lock()
	if _, gone := r.dismissed[n.ID]; gone {
		r.mu.Unlock()
		return false
	}
	if i := r.indexOf(n.ID); i >= 0 {
		// Known id: only a read flag may travel forward.
		changed := n.Read && !r.items[i].Read
		if changed {
			r.read[n.ID] = struct{}{}
			r.items[i].Read = true
		}
		r.mu.Unlock()
		if changed {
			r.publish()
		}
		return false
	}

	r.items = append([]model.Notification{r.settle(n)}, r.items...)
	r.mu.Unlock()

	r.publish()
	return true
}

// MarkRead marks one notification read. It reports whether it was unread.
// An id not currently listed is remembered so a later fetch or push
// cannot bring it back unread.
func (r *Reconciler) MarkRead(id string) bool {
	r.mu.Lock()
	r.read[id] = struct{}{}
	changed := false
	if i := r.indexOf(id); i >= 0 && !r.items[i].Read {
		r.items[i].Read = true
		changed = true
	}
	r.mu.Unlock()

	if changed {
		r.publish()
	}
	return changed
}

// MarkAllRead marks every listed notification read and returns how many
// were unread.
func (r *Reconciler) MarkAllRead() int {
	r.mu.Lock()
	count := 0
	for i := range r.items {
		r.read[r.items[i].ID] = struct{}{}
		if !r.items[i].Read {
			r.items[i].Read = true
			count++
		}
	}
	r.mu.Unlock()

	if count > 0 {
		r.publish()
	}
	return count
}

// Remove drops a notification for good. Later fetches and pushes of the
// same id are ignored.
func (r *Reconciler) Remove(id string) bool {
	r.mu.Lock()
	r.dismissed[id] = struct{}{}
	i := r.indexOf(id)
	if i >= 0 {
		r.items = append(r.items[:i:i], r.items[i+1:]...)
	}
	r.mu.Unlock()

	if i >= 0 {
		r.publish()
	}
	return i >= 0
}

// Get returns one listed notification.
func (r *Reconciler) Get(id string) (model.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		return r.items[i], true
	}
	return model.Notification{}, false
}

// Snapshot returns a copy of the current view.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Unread returns the number of unread notifications.
func (r *Reconciler) Unread() int {
	return r.Snapshot().Unread
}

// Subscribe returns a channel that receives the latest snapshot after each
// change. Slow readers skip intermediate snapshots. Call cancel to stop.
func (r *Reconciler) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (r *Reconciler) publish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshotLocked()
	for _, ch := range r.subs {
		// Replace any unread snapshot with the newer one.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// settle applies remembered read state to n. Must hold mu.
func (r *Reconciler) settle(n model.Notification) model.Notification {
	if n.Read {
		r.read[n.ID] = struct{}{}
	} else if _, ok := r.read[n.ID]; ok {
		n.Read = true
	}
	return n
}

func (r *Reconciler) snapshotLocked() Snapshot {
	snap := Snapshot{Items: append([]model.Notification(nil), r.items...)}
	for _, n := range r.items {
		if !n.Read {
			snap.Unread++
		}
	}
	return snap
}

func (r *Reconciler) indexOf(id string) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}
