package comm

import (
	"fmt"
	"sync"
)

// BoxSize is the number of messages a single mailbox slot buffers before
// Put blocks.
const BoxSize = 64

// Key identifies one ordered stream of messages.
type Key struct {
	Comm     string
	Src, Dst int
	Tag      int
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%d->%d tag %d]", k.Comm, k.Src, k.Dst, k.Tag)
}

// Envelope is the unit a transport carries between ranks.
type Envelope struct {
	Key
	Data []float64
}

// Mailbox is a thread-safe set of FIFO queues, one per Key, protected by a
// mutex. Queues are created on first use by either side.
type Mailbox struct {
	mu    sync.Mutex
	boxes map[Key]chan []float64
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{boxes: make(map[Key]chan []float64)}
}

func (m *Mailbox) box(k Key) chan []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, found := m.boxes[k]
	if !found {
		b = make(chan []float64, BoxSize)
		m.boxes[k] = b
	}
	return b
}

// Put queues data under k. It blocks while the queue is full.
func (m *Mailbox) Put(k Key, data []float64) {
	m.box(k) <- data
}

// Take blocks until a message is queued under k and removes it.
func (m *Mailbox) Take(k Key) []float64 {
	return <-m.box(k)
}

// Pending returns the number of queued messages across all keys.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.boxes {
		n += len(b)
	}
	return n
}
