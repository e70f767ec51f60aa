package recorder

import "github.com/guidesnap/guidesnap/internal/guide"

// Subscribe registers for state broadcasts. Every transition and every
// recorded step produces one snapshot on the returned channel. The channel
// is buffered; a subscriber that falls behind loses intermediate snapshots
// but always eventually observes the latest one delivered.
//
// Call the returned cancel function to unsubscribe and close the channel.
func (r *Recorder) Subscribe() (<-chan guide.StateSnapshot, func()) {
	ch := make(chan guide.StateSnapshot, 8)

	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// broadcast fans one snapshot out to all subscribers. Sends never block:
// delivery failure on a page that navigated away or closed must not stall
// the recorder, so a full subscriber buffer drops the oldest pending
// snapshot in favor of the new one.
func (r *Recorder) broadcast(snap guide.StateSnapshot) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
