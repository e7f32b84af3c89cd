package domain

import "time"

// Run is one end-to-end execution of the engine for one subject and tier.
type Run struct {
	RunID          string     `json:"run_id"`
	OwnerID        string     `json:"owner_id"`
	Tier           Tier       `json:"tier"`
	Subject        string     `json:"subject"`
	Status         RunStatus  `json:"status"`
	CompletedCount int        `json:"completed_count"`
	TotalCount     int        `json:"total_count"`
	TokensUsed     int        `json:"tokens_used"`
	DurationMs     int64      `json:"duration_ms"`
	Warnings       []string   `json:"warnings,omitempty"`
	Deployment     Deployment `json:"deployment"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Deployment holds run-level metadata produced by the publish side effect.
type Deployment struct {
	ChatID     string `json:"chat_id,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	LiveURL    string `json:"live_url,omitempty"`
}

// ItemExecution is one attempt to produce the output of a WorkItem within a
// run. At most one row exists per (run_id, item_id).
type ItemExecution struct {
	RunID         string     `json:"run_id"`
	ItemID        string     `json:"item_id"`
	DisplayName   string     `json:"display_name"`
	Section       string     `json:"section"`
	ResolvedInput string     `json:"resolved_input"`
	Output        string     `json:"output"`
	Status        ItemStatus `json:"status"`
	TokensUsed    int        `json:"tokens_used"`
	DurationMs    int64      `json:"duration_ms"`
	ExecutedAt    time.Time  `json:"executed_at"`
}

// Artifact is a named, typed payload belonging to a run and, optionally, to
// one item execution.
type Artifact struct {
	ArtifactID string       `json:"artifact_id"`
	RunID      string       `json:"run_id"`
	ItemID     string       `json:"item_id,omitempty"`
	Name       string       `json:"name"`
	Kind       ArtifactKind `json:"kind"`
	Payload    string       `json:"payload"`
	CreatedAt  time.Time    `json:"created_at"`
}

// DeliveryPackage is the final bundle record for a completed run. The signed
// URL can be regenerated after expiry without rebuilding the content.
type DeliveryPackage struct {
	PackageID   string        `json:"package_id"`
	RunID       string        `json:"run_id"`
	Format      PackageFormat `json:"format"`
	StoragePath string        `json:"storage_path"`
	SignedURL   string        `json:"signed_url"`
	SizeBytes   int64         `json:"size_bytes"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ProgressEvent is one discrete status transition emitted by the engine.
type ProgressEvent struct {
	EventID        string         `json:"event_id"`
	RunID          string         `json:"run_id"`
	ItemID         string         `json:"item_id"`
	ItemName       string         `json:"item_name"`
	Section        string         `json:"section"`
	Status         ProgressStatus `json:"status"`
	Percentage     int            `json:"percentage"`
	CompletedCount int            `json:"completed_count"`
	TotalCount     int            `json:"total_count"`
	Ts             int64          `json:"ts"` // Unix milliseconds
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID          string    `json:"run_id"`
	Status         RunStatus `json:"status"`
	CompletedCount int       `json:"completed_count"`
	TotalCount     int       `json:"total_count"`
	TokensUsed     int       `json:"tokens_used"`
	DurationMs     int64     `json:"duration_ms"`
	Warnings       []string  `json:"warnings,omitempty"`
}

// StyleProfile is the structured brand description persisted by the asset
// fan-out handler and consumed by the publish handler.
type StyleProfile struct {
	Colors      []string `json:"colors"`
	Typography  string   `json:"typography"`
	Mood        string   `json:"mood"`
	PrimaryLogo string   `json:"primary_logo,omitempty"`
}
