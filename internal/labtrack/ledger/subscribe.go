package ledger

import "github.com/BrandonDHaskell/labtrack/internal/labtrack/types"

// Subscribe returns a channel that receives every event appended after the
// call. Delivery is best effort: when the buffer is full the event is
// dropped for that subscriber. The returned func unsubscribes and closes
// the channel.
func (l *Ledger) Subscribe(buffer int) (<-chan types.AccessEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan types.AccessEvent, buffer)

	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subMu.Unlock()

	return ch, func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
}

func (l *Ledger) publish(ev types.AccessEvent) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
