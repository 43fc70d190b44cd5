package transport

// Inbox buffers packets produced by reader goroutines until the owner's poll
// loop picks them up with Receive.
type Inbox struct {
	packets chan Packet
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 1024
	}
	return &Inbox{packets: make(chan Packet, size)}
}

// Push enqueues p without blocking. It reports false if the inbox is full and
// p was dropped.
func (in *Inbox) Push(p Packet) bool {
	select {
	case in.packets <- p:
		return true
	default:
		return false
	}
}

// PushWait enqueues p, blocking until there is room or done is closed.
func (in *Inbox) PushWait(p Packet, done <-chan struct{}) bool {
	select {
	case in.packets <- p:
		return true
	case <-done:
		return false
	}
}

// PushClose enqueues a close signal for addr, blocking like PushWait.
func (in *Inbox) PushClose(addr string, done <-chan struct{}) {
	in.PushWait(Packet{Addr: addr}, done)
}

// Receive pops the next packet without blocking.
func (in *Inbox) Receive() (Packet, bool) {
	select {
	case p := <-in.packets:
		return p, true
	default:
		return Packet{}, false
	}
}

func (in *Inbox) Len() int {
	return len(in.packets)
}
