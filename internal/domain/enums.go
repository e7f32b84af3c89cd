// Package domain defines the core domain models for the orchestration engine.
package domain

// Tier is a named package level controlling which catalog items execute,
// which side effects trigger, and the delivery format.
type Tier string

const (
	TierStarter    Tier = "starter"
	TierGrowth     Tier = "growth"
	TierEnterprise Tier = "enterprise"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ItemStatus represents the outcome of one item execution attempt.
type ItemStatus string

const (
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusFailed    ItemStatus = "failed"
)

// ProgressStatus is the status carried by a progress event.
type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

// PackageFormat distinguishes the two delivery bundle shapes.
type PackageFormat string

const (
	PackageFormatDocument PackageFormat = "document"
	PackageFormatArchive  PackageFormat = "archive"
)

// ArtifactKind classifies a persisted artifact payload.
type ArtifactKind string

const (
	ArtifactKindDocument     ArtifactKind = "document"
	ArtifactKindImage        ArtifactKind = "image"
	ArtifactKindStyleProfile ArtifactKind = "style_profile"
)
