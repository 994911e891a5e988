package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/samber/mo"
)

var (
	// ErrJobNotFound は指定IDのジョブが存在しない場合に返される
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition は状態遷移が順序に沿わない場合に返される
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrJobTerminal は終端状態のジョブを更新しようとした場合に返される
	ErrJobTerminal = errors.New("job already finished")
	// ErrTooManyJobs は同時実行ジョブ数の上限に達した場合に返される
	ErrTooManyJobs = errors.New("too many running jobs")
)

const (
	defaultListLimit = 50
	persistTimeout   = 5 * time.Second

	// DefaultRetention は永続化先がある場合に終了済みジョブをメモリに残す期間
	DefaultRetention = time.Hour
)

// Manager はジョブ記録をメモリ上で管理する
// 1つのジョブIDに対して記録は常に1つだけ存在する
// 永続化先がある場合、終了から retention を過ぎたジョブはメモリから外し永続化先から読む
type Manager struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]*Job
	store     Store
	events    *EventBus
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration
}

// ManagerOption はManagerの設定オプション
type ManagerOption func(*Manager)

// WithStore は永続化先を設定する
func WithStore(store Store) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithRetention は終了済みジョブをメモリに残す期間を設定する
// 永続化先が無い場合は常に全件を保持する
func WithRetention(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithEventBus はイベントバスを設定する
func WithEventBus(bus *EventBus) ManagerOption {
	return func(m *Manager) {
		if bus != nil {
			m.events = bus
		}
	}
}

// WithManagerLogger はロガーを設定する
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock は現在時刻の取得関数を差し替える
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager は新しいManagerを作成する
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		jobs:   make(map[uuid.UUID]*Job),
		events: NewEventBus(DefaultMaxEvents),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },

		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events はイベントバスを返す
func (m *Manager) Events() *EventBus {
	return m.events
}

// Create は queued 状態のジョブを作成する
func (m *Manager) Create(ctx context.Context, req catalog.Request) (Job, error) {
	now := m.now()
	j := &Job{
		ID:        uuid.New(),
		Request:   req,
		State:     StateQueued,
		Progress:  StateQueued.Progress(),
		Message:   StateQueued.DefaultMessage(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	evicted := m.evictLocked(now)
	m.jobs[j.ID] = j
	snapshot := *j
	m.mu.Unlock()

	if evicted > 0 {
		m.logger.Debug("終了済みジョブをメモリから外しました", "count", evicted)
	}

	m.logger.Info("ジョブを作成しました",
		"jobID", snapshot.ID,
		"class", req.Class,
		"board", req.Board,
		"subject", req.Subject,
		"chapter", req.Chapter,
	)
	m.persist(ctx, &snapshot)
	m.publishState(snapshot)

	return snapshot, nil
}

// Get はジョブを取得する（メモリ優先、無ければ永続化先）
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (mo.Option[Job], error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	var snapshot Job
	if ok {
		snapshot = *j
	}
	m.mu.RUnlock()

	if ok {
		return mo.Some(snapshot), nil
	}
	if m.store == nil {
		return mo.None[Job](), nil
	}

	stored, err := m.store.GetJob(ctx, id)
	if err != nil {
		return mo.None[Job](), fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if found, ok := stored.Get(); ok {
		return mo.Some(*found), nil
	}
	return mo.None[Job](), nil
}

// List は作成日時の降順でジョブを返す
// 永続化先がある場合はメモリに無い過去のジョブも含める
func (m *Manager) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	m.mu.RLock()
	jobs := make([]Job, 0, len(m.jobs))
	seen := make(map[uuid.UUID]struct{}, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
		seen[j.ID] = struct{}{}
	}
	m.mu.RUnlock()

	if m.store != nil {
		stored, err := m.store.ListJobs(ctx, limit)
		if err != nil {
			m.logger.Warn("永続化されたジョブ一覧の取得に失敗しました", "error", err)
		}
		for _, j := range stored {
			if _, dup := seen[j.ID]; !dup {
				jobs = append(jobs, *j)
			}
		}
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Advance はジョブを正常系の次の状態へ進める
// message が空の場合は状態の既定メッセージを使う
func (m *Manager) Advance(ctx context.Context, id uuid.UUID, to State, message string) (Job, error) {
	return m.update(ctx, id, func(j *Job) error {
		next, ok := j.State.Next()
		if !ok || next != to || to == StateCompleted {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
		}
		if j.State == StateQueued {
			started := m.now()
			j.StartedAt = &started
		}
		j.State = to
		j.Progress = to.Progress()
		j.Message = messageOr(message, to)
		return nil
	})
}

// Complete はジョブを completed に遷移させ、成果物情報を記録する
func (m *Manager) Complete(ctx context.Context, id uuid.UUID, result Result) (Job, error) {
	snapshot, err := m.update(ctx, id, func(j *Job) error {
		if next, ok := j.State.Next(); !ok || next != StateCompleted {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, StateCompleted)
		}
		notesID := result.NotesID
		finished := m.now()
		j.State = StateCompleted
		j.Progress = StateCompleted.Progress()
		j.Message = StateCompleted.DefaultMessage()
		j.NotesID = &notesID
		j.ArtifactPath = result.ArtifactPath
		j.CompletedAt = &finished
		return nil
	})
	if err != nil {
		return snapshot, err
	}

	m.events.Publish(Event{
		JobID:        id,
		Type:         EventTypeResult,
		State:        StateCompleted,
		Progress:     snapshot.Progress,
		Message:      snapshot.Message,
		ArtifactPath: snapshot.ArtifactPath,
	})
	return snapshot, nil
}

// Fail はジョブを failed に遷移させ、エラー文字列を記録する
// 進捗率は直前の値を維持する
func (m *Manager) Fail(ctx context.Context, id uuid.UUID, cause error) (Job, error) {
	errMsg := "unknown error"
	if cause != nil {
		errMsg = cause.Error()
	}

	snapshot, err := m.update(ctx, id, func(j *Job) error {
		finished := m.now()
		j.State = StateFailed
		j.Message = StateFailed.DefaultMessage()
		j.Error = errMsg
		j.CompletedAt = &finished
		return nil
	})
	if err != nil {
		return snapshot, err
	}

	m.events.Publish(Event{
		JobID:    id,
		Type:     EventTypeError,
		State:    StateFailed,
		Progress: snapshot.Progress,
		Message:  errMsg,
	})
	return snapshot, nil
}

// Cancel はジョブを cancelled に遷移させる
// メモリに無いジョブは永続化先から読み込んでから判定する
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (Job, error) {
	if err := m.load(ctx, id); err != nil {
		return Job{}, err
	}
	return m.update(ctx, id, func(j *Job) error {
		finished := m.now()
		j.State = StateCancelled
		j.Message = StateCancelled.DefaultMessage()
		j.CompletedAt = &finished
		return nil
	})
}

// Log はジョブに紐づくログイベントを発行する
func (m *Manager) Log(id uuid.UUID, message string) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	var state State
	var progress int
	if ok {
		state = j.State
		progress = j.Progress
	}
	m.mu.RUnlock()

	if !ok {
		return
	}
	m.events.Publish(Event{
		JobID:    id,
		Type:     EventTypeLog,
		State:    state,
		Progress: progress,
		Message:  message,
	})
}

// load は永続化先にだけ存在するジョブをメモリに読み込む
// 再起動前に作られたジョブも終端判定と取り消しの対象になる
func (m *Manager) load(ctx context.Context, id uuid.UUID) error {
	if m.store == nil {
		return nil
	}
	m.mu.RLock()
	_, ok := m.jobs[id]
	m.mu.RUnlock()
	if ok {
		return nil
	}

	stored, err := m.store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", id, err)
	}
	found, ok := stored.Get()
	if !ok {
		return nil
	}

	m.mu.Lock()
	if _, exists := m.jobs[id]; !exists {
		j := *found
		m.jobs[id] = &j
	}
	m.mu.Unlock()
	return nil
}

// evictLocked は retention を過ぎた終了済みジョブを外し、外した件数を返す
// m.mu を保持した状態で呼ぶ
func (m *Manager) evictLocked(now time.Time) int {
	if m.store == nil {
		return 0
	}
	cutoff := now.Add(-m.retention)
	evicted := 0
	for id, j := range m.jobs {
		if j.State.IsTerminal() && j.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			evicted++
		}
	}
	return evicted
}

// update はロック下でジョブを更新し、永続化とイベント発行を行う
func (m *Manager) update(ctx context.Context, id uuid.UUID, mutate func(*Job) error) (Job, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if j.State.IsTerminal() {
		snapshot := *j
		m.mu.Unlock()
		return snapshot, fmt.Errorf("%w: %s is %s", ErrJobTerminal, id, snapshot.State)
	}

	// 失敗時に部分的な変更が残らないようコピーに対して適用する
	updated := *j
	if err := mutate(&updated); err != nil {
		m.mu.Unlock()
		return *j, err
	}
	updated.UpdatedAt = m.now()
	*j = updated
	m.mu.Unlock()

	m.logger.Info("ジョブ状態を更新しました",
		"jobID", updated.ID,
		"state", updated.State,
		"progress", updated.Progress,
	)
	m.persist(ctx, &updated)
	m.publishState(updated)

	return updated, nil
}

// persist はベストエフォートで永続化する（失敗はログのみ）
func (m *Manager) persist(ctx context.Context, j *Job) {
	if m.store == nil {
		return
	}

	// ジョブのコンテキストがキャンセルされても最終状態は書き込む
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := m.store.SaveJob(saveCtx, j); err != nil {
		m.logger.Warn("ジョブの永続化に失敗しました",
			"jobID", j.ID,
			"state", j.State,
			"error", err,
		)
	}
}

func (m *Manager) publishState(j Job) {
	m.events.Publish(Event{
		JobID:    j.ID,
		Type:     EventTypeState,
		State:    j.State,
		Progress: j.Progress,
		Message:  j.Message,
	})
}

func messageOr(message string, s State) string {
	if message != "" {
		return message
	}
	return s.DefaultMessage()
}
