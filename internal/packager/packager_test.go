package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/storage"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedFinishedRun creates a completed run with two sections of output, one
// failed item, and returns it.
func seedFinishedRun(t *testing.T, s *store.SQLiteStore) *domain.Run {
	t.Helper()
	ctx := context.Background()
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	run := &domain.Run{
		RunID:          "run_pack0001",
		OwnerID:        "owner_1",
		Tier:           domain.TierGrowth,
		Subject:        "a mobile dog grooming service",
		Status:         domain.RunStatusCompleted,
		CompletedCount: 3,
		TotalCount:     4,
		StartedAt:      started,
	}
	require.NoError(t, s.CreateRun(ctx, run))
	run.Status = domain.RunStatusCompleted
	require.NoError(t, s.FinalizeRun(ctx, run))

	execs := []domain.ItemExecution{
		{RunID: run.RunID, ItemID: "market-analysis", DisplayName: "Market Analysis", Section: "Market Research",
			Output: "Strong demand in urban areas.", Status: domain.ItemStatusCompleted, ExecutedAt: started.Add(time.Second)},
		{RunID: run.RunID, ItemID: "target-audience", DisplayName: "Target Audience Profile", Section: "Market Research",
			Output: "Busy professionals with dogs.", Status: domain.ItemStatusCompleted, ExecutedAt: started.Add(2 * time.Second)},
		{RunID: run.RunID, ItemID: "pricing-strategy", DisplayName: "Pricing Strategy", Section: "Business Strategy",
			Output: "ERROR: upstream timeout", Status: domain.ItemStatusFailed, ExecutedAt: started.Add(3 * time.Second)},
		{RunID: run.RunID, ItemID: "value-proposition", DisplayName: "Value Proposition", Section: "Business Strategy",
			Output: "Grooming that comes to you.", Status: domain.ItemStatusCompleted, ExecutedAt: started.Add(4 * time.Second)},
	}
	for i := range execs {
		require.NoError(t, s.CreateItemExecution(ctx, &execs[i]))
	}
	return run
}

func archiveEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(content)
	}
	return out
}

func TestPackageDocument(t *testing.T) {
	s := newTestStore(t)
	run := seedFinishedRun(t, s)
	objects := storage.NewMemoryStore()
	p := New(s, objects, time.Hour)

	pkg, err := p.Package(context.Background(), run.RunID, domain.PackageFormatDocument)
	require.NoError(t, err)
	assert.Equal(t, domain.PackageFormatDocument, pkg.Format)
	assert.NotEmpty(t, pkg.SignedURL)
	assert.Greater(t, pkg.SizeBytes, int64(0))

	data, ok := objects.Object(pkg.StoragePath)
	require.True(t, ok)
	report := string(data)

	assert.Contains(t, report, "# Business Blueprint")
	assert.Contains(t, report, "a mobile dog grooming service")
	assert.Contains(t, report, "# Market Research")
	assert.Contains(t, report, "## Market Analysis\n\nStrong demand in urban areas.")
	assert.Contains(t, report, "# Business Strategy")
	assert.Contains(t, report, "Not included (generation failed): Pricing Strategy")
	// Failed output never leaks into the deliverable.
	assert.NotContains(t, report, "ERROR: upstream timeout")

	// Sections appear in execution order.
	assert.Less(t,
		bytes.Index(data, []byte("# Market Research")),
		bytes.Index(data, []byte("# Business Strategy")))

	stored, err := s.GetPackage(context.Background(), pkg.PackageID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, pkg.StoragePath, stored.StoragePath)
}

func TestPackageArchive(t *testing.T) {
	s := newTestStore(t)
	run := seedFinishedRun(t, s)
	objects := storage.NewMemoryStore()
	p := New(s, objects, time.Hour)

	pkg, err := p.Package(context.Background(), run.RunID, domain.PackageFormatArchive)
	require.NoError(t, err)
	assert.Equal(t, domain.PackageFormatArchive, pkg.Format)

	data, ok := objects.Object(pkg.StoragePath)
	require.True(t, ok)
	entries := archiveEntries(t, data)

	require.Contains(t, entries, "README.md")
	assert.Contains(t, entries["README.md"], "## Recommended reading order")
	assert.Contains(t, entries["README.md"], "Not included (generation failed): Pricing Strategy")

	require.Contains(t, entries, "01-market-research/README.md")
	require.Contains(t, entries, "01-market-research/market-analysis.md")
	assert.Contains(t, entries["01-market-research/market-analysis.md"], "Strong demand in urban areas.")
	require.Contains(t, entries, "02-business-strategy/value-proposition.md")

	// The failed item has no file anywhere in the bundle.
	for name := range entries {
		assert.NotContains(t, name, "pricing-strategy")
	}

	// No assets and no deployment in this run, so neither folder exists.
	assert.NotContains(t, entries, "brand-assets/README.md")
	assert.NotContains(t, entries, "deployment-info/README.md")
}

func TestPackageArchiveWithAssetsAndDeployment(t *testing.T) {
	s := newTestStore(t)
	run := seedFinishedRun(t, s)
	ctx := context.Background()

	for i, url := range []string{"https://img.example.com/1.png", "https://img.example.com/2.png"} {
		require.NoError(t, s.CreateArtifact(ctx, &domain.Artifact{
			ArtifactID: "art_logo" + string(rune('0'+i)),
			RunID:      run.RunID,
			ItemID:     "brand-identity",
			Name:       "logo-variant-" + string(rune('1'+i)),
			Kind:       domain.ArtifactKindImage,
			Payload:    url,
			CreatedAt:  run.StartedAt.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.UpdateRunDeployment(ctx, run.RunID, domain.Deployment{
		ChatID:     "chat_1",
		PreviewURL: "https://preview.example.com/1",
		LiveURL:    "https://live.example.com/1",
	}))

	objects := storage.NewMemoryStore()
	p := New(s, objects, time.Hour)
	pkg, err := p.Package(ctx, run.RunID, domain.PackageFormatArchive)
	require.NoError(t, err)

	data, _ := objects.Object(pkg.StoragePath)
	entries := archiveEntries(t, data)

	require.Contains(t, entries, "brand-assets/README.md")
	assert.Contains(t, entries["brand-assets/README.md"], "1. [logo-variant-1](https://img.example.com/1.png)")
	require.Contains(t, entries, "deployment-info/README.md")
	assert.Contains(t, entries["deployment-info/README.md"], "Live site: https://live.example.com/1")
	assert.Contains(t, entries["README.md"], "brand-assets/")
	assert.Contains(t, entries["README.md"], "deployment-info/")
}

func TestPackageArchiveDeterministic(t *testing.T) {
	s := newTestStore(t)
	run := seedFinishedRun(t, s)

	first := storage.NewMemoryStore()
	second := storage.NewMemoryStore()

	pkg1, err := New(s, first, time.Hour).Package(context.Background(), run.RunID, domain.PackageFormatArchive)
	require.NoError(t, err)
	pkg2, err := New(s, second, time.Hour).Package(context.Background(), run.RunID, domain.PackageFormatArchive)
	require.NoError(t, err)

	data1, _ := first.Object(pkg1.StoragePath)
	data2, _ := second.Object(pkg2.StoragePath)
	assert.Equal(t, data1, data2, "identical inputs must produce identical archive bytes")
}

func TestPackageRequiresTerminalRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := &domain.Run{
		RunID:     "run_live0001",
		OwnerID:   "owner_1",
		Tier:      domain.TierStarter,
		Subject:   "subject",
		Status:    domain.RunStatusInProgress,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateRun(ctx, run))

	p := New(s, storage.NewMemoryStore(), time.Hour)
	_, err := p.Package(ctx, run.RunID, domain.PackageFormatDocument)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not finished")

	_, err = p.Package(ctx, "run_missing", domain.PackageFormatDocument)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRefreshLink(t *testing.T) {
	s := newTestStore(t)
	run := seedFinishedRun(t, s)
	objects := storage.NewMemoryStore()
	p := New(s, objects, time.Hour)

	pkg, err := p.Package(context.Background(), run.RunID, domain.PackageFormatDocument)
	require.NoError(t, err)

	refreshed, err := p.RefreshLink(context.Background(), pkg.PackageID)
	require.NoError(t, err)
	assert.Equal(t, pkg.StoragePath, refreshed.StoragePath, "refresh must not rebuild the object")
	assert.NotEqual(t, pkg.SignedURL, refreshed.SignedURL)
	assert.True(t, refreshed.ExpiresAt.After(pkg.CreatedAt))

	stored, err := s.GetPackage(context.Background(), pkg.PackageID)
	require.NoError(t, err)
	assert.Equal(t, refreshed.SignedURL, stored.SignedURL)

	_, err = p.RefreshLink(context.Background(), "pkg_missing")
	require.Error(t, err)
}
