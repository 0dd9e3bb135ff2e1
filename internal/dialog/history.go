package dialog

// history is a fixed-capacity ring of messages; pushing into a full ring drops the oldest.
type history struct {
	buf   []Message
	start int
	size  int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{buf: make([]Message, capacity)}
}

func (h *history) push(msg Message) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = msg
		h.size++
		return
	}
	h.buf[h.start] = msg
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) len() int {
	return h.size
}

// last returns copies of the newest n messages in arrival order.
func (h *history) last(n int) []Message {
	if n > h.size || n < 0 {
		n = h.size
	}
	out := make([]Message, 0, n)
	for i := h.size - n; i < h.size; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

func (h *history) all() []Message {
	return h.last(h.size)
}
