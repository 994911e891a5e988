package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType はジョブ実行中に発行されるイベントの種別
type EventType string

const (
	EventTypeState  EventType = "state"
	EventTypeLog    EventType = "log"
	EventTypeError  EventType = "error"
	EventTypeResult EventType = "result"
)

// DefaultMaxEvents はEventBusが保持するイベント数のデフォルト値
const DefaultMaxEvents = 1000

// Event はポーリングするクライアント向けの連番付きイベント
type Event struct {
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	JobID        uuid.UUID `json:"jobId"`
	Type         EventType `json:"type"`
	State        State     `json:"state,omitempty"`
	Progress     int       `json:"progress"`
	Message      string    `json:"message,omitempty"`
	ArtifactPath string    `json:"artifactPath,omitempty"`
}

// EventBus は直近のイベントを保持し、差分読み出しと購読を提供する
type EventBus struct {
	mu          sync.RWMutex
	nextSeq     int64
	maxEvents   int
	events      []Event
	subscribers map[int]chan Event
	nextSubID   int
}

// NewEventBus は上限付きのインメモリイベントバッファを作成する
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	return &EventBus{
		maxEvents:   maxEvents,
		events:      make([]Event, 0, maxEvents),
		subscribers: make(map[int]chan Event),
	}
}

// Publish はイベントを追加し、連番とタイムスタンプを割り当てる
// 購読者への送信はブロックせず、バッファが満杯の購読者には届かない
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}

	return event
}

// Since は seq より大きい連番のイベントを返す
// jobID が uuid.Nil の場合は全ジョブのイベントを返す
func (b *EventBus) Since(jobID uuid.UUID, seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq <= seq {
			continue
		}
		if jobID != uuid.Nil && event.JobID != jobID {
			continue
		}
		out = append(out, event)
	}
	return out
}

// Subscribe は以降に発行されるイベントを受け取るチャネルを返す
// 返り値の関数で購読を解除する
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	ch := make(chan Event, buffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}
