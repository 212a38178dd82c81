// Package siftd is a JSON-RPC 2.0 daemon speaking JSONL over TCP. Each
// connection is a sequential request/response stream; workspaces are
// registered once and addressed by id afterwards.
package siftd

import "encoding/json"

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type WorkspaceAddParams struct {
	Root     string `json:"root"`
	StateDir string `json:"state_dir,omitempty"`
	Backend  string `json:"backend,omitempty"`
	Shards   int    `json:"shards,omitempty"`

	ScanAll      bool     `json:"scan_all,omitempty"`
	IncludeGlobs []string `json:"include_globs,omitempty"`
	ExcludeGlobs []string `json:"exclude_globs,omitempty"`

	// Vectors enables the local hashing embedder for this workspace.
	Vectors    bool `json:"vectors,omitempty"`
	VectorDims int  `json:"vector_dims,omitempty"`

	Limit       int    `json:"limit,omitempty"`
	Method      string `json:"fusion,omitempty"`
	PerPathTopN int    `json:"per_path,omitempty"`
}

type IndexBuildParams struct {
	WorkspaceID string `json:"workspace_id"`
}

type QueryParams struct {
	WorkspaceID string `json:"workspace_id"`
	Q           string `json:"q"`
}

type WatchStartParams struct {
	WorkspaceID string `json:"workspace_id"`
	DebounceMS  int    `json:"debounce_ms,omitempty"`
}

type WatchStopParams struct {
	WorkspaceID string `json:"workspace_id"`
}

type WatchStatusParams struct {
	WorkspaceID string `json:"workspace_id"`
}

type WatchStatusResult struct {
	Running      bool   `json:"running"`
	VectorHealth string `json:"vector_health"`
}
