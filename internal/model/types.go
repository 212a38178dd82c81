package model

// Source identifies which index produced a candidate.
type Source string

const (
	SourceLexical Source = "lexical"
	SourceVector  Source = "vector"
)

// EventKind classifies a filesystem change.
type EventKind string

const (
	EventCreate EventKind = "create"
	EventModify EventKind = "modify"
	EventRemove EventKind = "remove"
	EventRename EventKind = "rename"
)

// FileEvent is one filesystem change, path relative to the repository root.
type FileEvent struct {
	Path string    `json:"path"`
	Kind EventKind `json:"kind"`
}

// Chunk is one immutable indexable span of a file. Lines are half-open:
// [StartLine, EndLine). A content change never mutates a chunk; it produces
// new chunk IDs and retires the old ones.
type Chunk struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Language   string `json:"lang,omitempty"`
	StartLine  int    `json:"sl"`
	EndLine    int    `json:"el"`
	TokenCount int    `json:"tokens"`
	Checksum   string `json:"checksum"`
	Text       string `json:"text,omitempty"`
}

// FusedResult is one ranked entry in the final merged result list.
type FusedResult struct {
	ChunkID      string  `json:"chunk_id"`
	Path         string  `json:"path"`
	StartLine    int     `json:"sl"`
	EndLine      int     `json:"el"`
	Snippet      string  `json:"snippet,omitempty"`
	Score        float64 `json:"score"`
	LexicalScore float64 `json:"lexical_score,omitempty"`
	VectorScore  float64 `json:"vector_score,omitempty"`
}

// FusedResults is the ordered output of one query plus quality metrics.
// Not persisted.
type FusedResults struct {
	Items         []FusedResult `json:"items"`
	TopMargin     float64       `json:"top_margin"`
	ScoreVariance float64       `json:"score_variance"`
	LowConfidence bool          `json:"low_confidence,omitempty"`
}

// Match is one in-text keyword occurrence, used for snippet extraction.
type Match struct {
	Line int    `json:"line"`
	Col  int    `json:"col"`
	Len  int    `json:"len,omitempty"`
	Text string `json:"text"`
}

// FileFailure records a per-file problem during a scan. Scans aggregate
// failures instead of aborting.
type FileFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    string `json:"err,omitempty"`
}

// ScanReport summarizes a full or incremental scan: partial success by
// design, failures reported alongside the work that did complete.
type ScanReport struct {
	FilesSeen    int           `json:"files_seen"`
	FilesChunked int           `json:"files_chunked"`
	FilesSkipped int           `json:"files_skipped"`
	Chunks       int           `json:"chunks"`
	Failures     []FileFailure `json:"failures,omitempty"`
}

const (
	FailureIO       = "io"
	FailureParse    = "parse"
	FailureTooLarge = "file_too_large"
	FailureTimeout  = "timeout"
)
