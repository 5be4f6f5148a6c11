package mqtt

// bufferedMsg is a serialized publish waiting for the broker to come back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds publishes made while disconnected, oldest first. When full
// the oldest entry is overwritten. A retained message replaces the pending
// retained message for the same topic, since the broker would only keep the
// last one anyway. Not safe for concurrent use; the caller synchronizes.
type ringBuffer struct {
	slots    []bufferedMsg
	head     int // next write position
	count    int
	overflow bool // set once a message is lost, cleared by drainAll
	dropped  int  // messages lost since startup
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{slots: make([]bufferedMsg, capacity)}
}

// push queues msg. It returns true for the first loss since the last drain.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	if msg.retained {
		if i, ok := r.findRetained(msg.topic); ok {
			r.slots[i] = msg
			return false
		}
	}

	capacity := len(r.slots)
	r.slots[r.head] = msg
	r.head = (r.head + 1) % capacity
	if r.count < capacity {
		r.count++
		return false
	}

	r.dropped++
	first := !r.overflow
	r.overflow = true
	return first
}

// findRetained returns the slot of the pending retained message for topic.
func (r *ringBuffer) findRetained(topic string) (int, bool) {
	for i := 0; i < r.count; i++ {
		slot := r.index(i)
		if r.slots[slot].retained && r.slots[slot].topic == topic {
			return slot, true
		}
	}
	return 0, false
}

// index maps the i-th oldest message to its slot.
func (r *ringBuffer) index(i int) int {
	capacity := len(r.slots)
	return (r.head - r.count + i + capacity) % capacity
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	out := make([]bufferedMsg, r.count)
	for i := range out {
		out[i] = r.slots[r.index(i)]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
