// Package store persists runs, item executions, artifacts, progress events
// and delivery packages.
package store

import (
	"context"
	"time"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

// Store is the persistence interface used by the engine, the packager and
// the HTTP handlers.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error
	FinalizeRun(ctx context.Context, run *domain.Run) error
	UpdateRunDeployment(ctx context.Context, runID string, dep domain.Deployment) error

	// Item executions
	CreateItemExecution(ctx context.Context, exec *domain.ItemExecution) error
	UpdateItemOutput(ctx context.Context, runID, itemID, output string) error
	GetItemExecution(ctx context.Context, runID, itemID string) (*domain.ItemExecution, error)
	ListItemExecutions(ctx context.Context, runID string) ([]domain.ItemExecution, error)

	// Artifacts
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) error
	ListArtifacts(ctx context.Context, runID string) ([]domain.Artifact, error)
	ListArtifactsByKind(ctx context.Context, runID string, kind domain.ArtifactKind) ([]domain.Artifact, error)

	// Progress events
	CreateProgressEvent(ctx context.Context, event *domain.ProgressEvent) error
	ListProgressEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.ProgressEvent, error)

	// Delivery packages
	CreatePackage(ctx context.Context, pkg *domain.DeliveryPackage) error
	GetPackage(ctx context.Context, packageID string) (*domain.DeliveryPackage, error)
	LatestPackageForRun(ctx context.Context, runID string) (*domain.DeliveryPackage, error)
	UpdatePackageLink(ctx context.Context, packageID, signedURL string, expiresAt time.Time) error

	Close() error
}
