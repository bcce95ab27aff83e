package session

import (
	"sync"
	"time"

	"github.com/lk2023060901/openfire-session-go/pkg/metrics"
	"github.com/lk2023060901/openfire-session-go/pkg/util/conc"
)

// 事件类型标签，对应 Event 联合体的各个变体。
const (
	EventIncomingMessage = "IncomingMessage"
	EventPresenceChanged = "PresenceChanged"
	EventRoomEvent       = "RoomEvent"
	EventConnectionLost  = "ConnectionLost"
)

// Event 为会话向宿主投递的异步事件。
// 只携带值，不携带任何活对象引用。
type Event struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Message   *MessageEvent  `json:"message,omitempty"`
	Presence  *PresenceState `json:"presence,omitempty"`
	Room      *RoomEvent     `json:"room,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// MessageEvent 为入站消息事件的载荷。
type MessageEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
	ID   string `json:"id"`
	Body string `json:"body"`
}

// RoomEvent 为房间成员变动事件的载荷。
type RoomEvent struct {
	Room     string `json:"room"`
	Occupant string `json:"occupant"`
	Action   string `json:"action"`
}

// 房间事件的动作取值。
const (
	RoomActionJoined = "joined"
	RoomActionLeft   = "left"
)

// defaultEventQueueCap 为每个会话的事件队列容量。
// 队列满时丢弃最旧的事件，保证新事件总能入队。
const defaultEventQueueCap = 256

// EventSink 为宿主注册的事件回调。
// 回调在共享协程池上执行，网络循环不会直接调用宿主代码。
type EventSink func(Event)

// eventQueue 为单个会话的有序有界事件队列。
type eventQueue struct {
	mu   sync.Mutex
	buf  []Event
	cap  int
	sink EventSink

	// deliverMu 串行化 sink 投递。取队头与调用 sink 必须在同一临界区内，
	// 否则协程池上的两个排空任务可能交换投递顺序。
	deliverMu sync.Mutex
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = defaultEventQueueCap
	}
	return &eventQueue{cap: capacity}
}

// push 将事件入队；队列已满时丢弃最旧的一条并计数。
// 若注册了 sink，再投递一个排空任务到协程池。
func (q *eventQueue) push(e Event) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().Format(time.RFC3339)
	}

	q.mu.Lock()
	if len(q.buf) >= q.cap {
		q.buf = q.buf[1:]
		metrics.EventsDropped.Inc()
	}
	q.buf = append(q.buf, e)
	sink := q.sink
	q.mu.Unlock()

	if sink != nil {
		_ = conc.SessionPool().Submit(func() { q.drain(sink) })
	}
}

// drain 向 sink 按入队顺序投递积压事件。
func (q *eventQueue) drain(sink EventSink) {
	q.deliverMu.Lock()
	defer q.deliverMu.Unlock()
	for {
		ev, ok := q.poll()
		if !ok {
			return
		}
		sink(ev)
	}
}

// poll 取出队头事件；队列为空时第二返回值为 false。
func (q *eventQueue) poll() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return Event{}, false
	}
	e := q.buf[0]
	q.buf = q.buf[1:]
	return e, true
}

// setSink 注册（或清除）宿主回调。
func (q *eventQueue) setSink(sink EventSink) {
	q.mu.Lock()
	q.sink = sink
	q.mu.Unlock()
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
