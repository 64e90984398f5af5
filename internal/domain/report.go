package domain

import "time"

// ChunkStatus is the terminal outcome of one chunk.
type ChunkStatus string

const (
	ChunkDone    ChunkStatus = "done"
	ChunkFailed  ChunkStatus = "failed"
	ChunkSkipped ChunkStatus = "skipped"
)

// ChunkStage is the last pipeline stage a chunk reached.
type ChunkStage string

const (
	StagePending    ChunkStage = "pending"
	StagePrompted   ChunkStage = "prompted"
	StageCompleted  ChunkStage = "completed"
	StageParsed     ChunkStage = "parsed"
	StageValidated  ChunkStage = "validated"
	StageNormalized ChunkStage = "normalized"
	StagePersisted  ChunkStage = "persisted"
)

// DocumentState tracks a document through the run.
type DocumentState string

const (
	DocumentPending DocumentState = "pending"
	DocumentChunked DocumentState = "chunked"
	DocumentDone    DocumentState = "done"
)

// ChunkReport records what happened to one chunk.
type ChunkReport struct {
	ChunkID     string      `json:"chunk_id"`
	SourceID    string      `json:"source_id"`
	Index       int         `json:"index"`
	Status      ChunkStatus `json:"status"`
	Stage       ChunkStage  `json:"stage"`
	Reason      ErrorCode   `json:"reason,omitempty"`
	Message     string      `json:"message,omitempty"`
	Attempts    int         `json:"attempts"`
	QuestionIDs []int64     `json:"question_ids,omitempty"`
	Diagnostics []string    `json:"diagnostics,omitempty"`
}

// DocumentReport groups the chunk reports of one source document.
type DocumentReport struct {
	SourceID string        `json:"source_id"`
	State    DocumentState `json:"state"`
	Chunks   []ChunkReport `json:"chunks"`
}

// RunReport is the structured result of one orchestration run.
type RunReport struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Done       int              `json:"done"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Documents  []DocumentReport `json:"documents"`
}

// Add appends a document report and updates the counters.
func (r *RunReport) Add(doc DocumentReport) {
	for _, c := range doc.Chunks {
		switch c.Status {
		case ChunkDone:
			r.Done++
		case ChunkFailed:
			r.Failed++
		case ChunkSkipped:
			r.Skipped++
		}
	}
	r.Documents = append(r.Documents, doc)
}

// Total is the number of chunks the run saw.
func (r *RunReport) Total() int {
	return r.Done + r.Failed + r.Skipped
}
