package job

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
)

// State はジョブの状態
type State string

const (
	StateQueued            State = "queued"
	StateValidating        State = "validating"
	StateFetchingSyllabus  State = "fetching_syllabus"
	StateExtractingTopics  State = "extracting_topics"
	StateScrapingResources State = "scraping_resources"
	StateIndexing          State = "indexing"
	StateRetrieving        State = "retrieving"
	StateGeneratingContent State = "generating_content"
	StateQualityCheck      State = "quality_check"
	StateCompilingPDF      State = "compiling_pdf"
	StateCompleted         State = "completed"

	// 正常系の順序から外れる終端状態
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// stateSequence は正常系の状態遷移順
var stateSequence = []State{
	StateQueued,
	StateValidating,
	StateFetchingSyllabus,
	StateExtractingTopics,
	StateScrapingResources,
	StateIndexing,
	StateRetrieving,
	StateGeneratingContent,
	StateQualityCheck,
	StateCompilingPDF,
	StateCompleted,
}

var stateProgress = map[State]int{
	StateQueued:            0,
	StateValidating:        5,
	StateFetchingSyllabus:  15,
	StateExtractingTopics:  25,
	StateScrapingResources: 35,
	StateIndexing:          50,
	StateRetrieving:        60,
	StateGeneratingContent: 75,
	StateQualityCheck:      88,
	StateCompilingPDF:      95,
	StateCompleted:         100,
}

var stateMessages = map[State]string{
	StateQueued:            "Waiting to start",
	StateValidating:        "Validating request",
	StateFetchingSyllabus:  "Fetching syllabus",
	StateExtractingTopics:  "Extracting topics",
	StateScrapingResources: "Gathering study resources",
	StateIndexing:          "Indexing resources",
	StateRetrieving:        "Retrieving relevant material",
	StateGeneratingContent: "Generating notes",
	StateQualityCheck:      "Checking quality",
	StateCompilingPDF:      "Compiling PDF",
	StateCompleted:         "Notes ready",
	StateFailed:            "Generation failed",
	StateCancelled:         "Generation cancelled",
}

// States は正常系の状態を順序通りに返す
func States() []State {
	return slices.Clone(stateSequence)
}

// ParseState は文字列を状態に変換する
func ParseState(s string) (State, bool) {
	st := State(s)
	if _, ok := stateMessages[st]; ok {
		return st, true
	}
	return "", false
}

// IsTerminal は終端状態かを返す
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress は状態に対応する進捗率（%）を返す
// 失敗・キャンセルは直前の進捗を維持するため -1 を返す
func (s State) Progress() int {
	if p, ok := stateProgress[s]; ok {
		return p
	}
	return -1
}

// DefaultMessage は状態の既定メッセージを返す
func (s State) DefaultMessage() string {
	return stateMessages[s]
}

// Next は正常系で次に来る状態を返す
func (s State) Next() (State, bool) {
	i := slices.Index(stateSequence, s)
	if i < 0 || i+1 >= len(stateSequence) {
		return "", false
	}
	return stateSequence[i+1], true
}

// Job はノート生成ジョブの記録
type Job struct {
	ID           uuid.UUID       `json:"id"`
	Request      catalog.Request `json:"request"`
	State        State           `json:"state"`
	Progress     int             `json:"progress"`
	Message      string          `json:"message"`
	Error        string          `json:"error,omitempty"`
	NotesID      *uuid.UUID      `json:"notesId,omitempty"`
	ArtifactPath string          `json:"artifactPath,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// Result はジョブ完了時の成果物情報
type Result struct {
	NotesID      uuid.UUID
	ArtifactPath string
}
