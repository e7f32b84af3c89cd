package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

// PackageRun returns the delivery package for a finished run, building it on
// first request. A package whose link has expired gets a fresh signed URL
// from the already-uploaded bytes; the content is never rebuilt.
func (s *Service) PackageRun(ctx context.Context, runID string) (*domain.DeliveryPackage, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if !run.Status.Terminal() {
		return nil, fmt.Errorf("%w: run %s is still %s", ErrRunNotFinished, runID, run.Status)
	}

	existing, err := s.store.LatestPackageForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up package: %w", err)
	}
	if existing != nil {
		if time.Now().Before(existing.ExpiresAt) {
			return existing, nil
		}
		return s.packager.RefreshLink(ctx, existing.PackageID)
	}

	ent, err := s.policy.Entitlements(ctx, run.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tier entitlements: %w", err)
	}
	return s.packager.Package(ctx, runID, ent.Format)
}

// RefreshPackageLink regenerates the signed URL of an existing package.
func (s *Service) RefreshPackageLink(ctx context.Context, packageID string) (*domain.DeliveryPackage, error) {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up package: %w", err)
	}
	if pkg == nil {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, packageID)
	}
	return s.packager.RefreshLink(ctx, packageID)
}
