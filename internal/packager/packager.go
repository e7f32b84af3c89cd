// Package packager aggregates a finished run's artifacts into the
// tier-appropriate delivery bundle: a single markdown report for the
// smallest tier, a structured multi-folder archive for the rest.
package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/storage"
)

// Packager builds and uploads delivery packages.
type Packager struct {
	store   store.Store
	objects storage.ObjectStore
	linkTTL time.Duration
}

// New creates a packager. linkTTL bounds the life of signed access URLs.
func New(s store.Store, objects storage.ObjectStore, linkTTL time.Duration) *Packager {
	if linkTTL <= 0 {
		linkTTL = 7 * 24 * time.Hour
	}
	return &Packager{store: s, objects: objects, linkTTL: linkTTL}
}

// section groups a run's completed executions under one label, in execution
// order.
type section struct {
	name  string
	execs []domain.ItemExecution
}

// Package builds the bundle for a terminal run and records it. Packaging
// failures are fatal for this operation only; the run's state is untouched
// and the call can be retried.
func (p *Packager) Package(ctx context.Context, runID string, format domain.PackageFormat) (*domain.DeliveryPackage, error) {
	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if !run.Status.Terminal() {
		return nil, fmt.Errorf("run %s is not finished (status %s)", runID, run.Status)
	}

	execs, err := p.store.ListItemExecutions(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item executions: %w", err)
	}

	var data []byte
	var contentType, ext string
	switch format {
	case domain.PackageFormatDocument:
		data = p.renderReport(run, execs)
		contentType, ext = "text/markdown", "md"
	case domain.PackageFormatArchive:
		data, err = p.renderArchive(ctx, run, execs)
		if err != nil {
			return nil, fmt.Errorf("failed to build archive: %w", err)
		}
		contentType, ext = "application/zip", "zip"
	default:
		return nil, fmt.Errorf("unknown package format %q", format)
	}

	path := fmt.Sprintf("%s/%s/%d.%s", run.OwnerID, run.RunID, time.Now().Unix(), ext)
	storedPath, err := p.objects.Upload(ctx, path, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload package: %w", err)
	}

	signedURL, err := p.objects.SignedURL(ctx, storedPath, p.linkTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign package url: %w", err)
	}

	now := time.Now()
	pkg := &domain.DeliveryPackage{
		PackageID:   "pkg_" + uuid.New().String()[:8],
		RunID:       run.RunID,
		Format:      format,
		StoragePath: storedPath,
		SignedURL:   signedURL,
		SizeBytes:   int64(len(data)),
		ExpiresAt:   now.Add(p.linkTTL),
		CreatedAt:   now,
	}
	if err := p.store.CreatePackage(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to record package: %w", err)
	}
	return pkg, nil
}

// RefreshLink regenerates only the signed URL of an existing package from
// the already-uploaded bytes.
func (p *Packager) RefreshLink(ctx context.Context, packageID string) (*domain.DeliveryPackage, error) {
	pkg, err := p.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	if pkg == nil {
		return nil, fmt.Errorf("package %s not found", packageID)
	}

	signedURL, err := p.objects.SignedURL(ctx, pkg.StoragePath, p.linkTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign package url: %w", err)
	}
	expiresAt := time.Now().Add(p.linkTTL)
	if err := p.store.UpdatePackageLink(ctx, packageID, signedURL, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to update package link: %w", err)
	}
	pkg.SignedURL = signedURL
	pkg.ExpiresAt = expiresAt
	return pkg, nil
}

// groupBySection preserves execution order for sections and for the items
// inside them. Failed items are excluded from the deliverable; the manifest
// notes them.
func groupBySection(execs []domain.ItemExecution) ([]section, []string) {
	var sections []section
	index := make(map[string]int)
	var failed []string
	for _, exec := range execs {
		if exec.Status != domain.ItemStatusCompleted {
			failed = append(failed, exec.DisplayName)
			continue
		}
		i, ok := index[exec.Section]
		if !ok {
			i = len(sections)
			index[exec.Section] = i
			sections = append(sections, section{name: exec.Section})
		}
		sections[i].execs = append(sections[i].execs, exec)
	}
	return sections, failed
}

// renderReport produces the single ordered markdown document.
func (p *Packager) renderReport(run *domain.Run, execs []domain.ItemExecution) []byte {
	sections, failed := groupBySection(execs)

	var b strings.Builder
	fmt.Fprintf(&b, "# Business Blueprint\n\n%s\n\n", run.Subject)
	fmt.Fprintf(&b, "_Generated %s_\n", run.StartedAt.UTC().Format(time.RFC3339))
	for _, sec := range sections {
		fmt.Fprintf(&b, "\n# %s\n", sec.name)
		for _, exec := range sec.execs {
			fmt.Fprintf(&b, "\n## %s\n\n%s\n", exec.DisplayName, exec.Output)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n---\n\nNot included (generation failed): " + strings.Join(failed, ", ") + "\n")
	}
	return []byte(b.String())
}

// renderArchive produces the structured zip bundle. Entry order and
// modification times are fixed so identical artifacts produce identical
// bytes.
func (p *Packager) renderArchive(ctx context.Context, run *domain.Run, execs []domain.ItemExecution) ([]byte, error) {
	sections, failed := groupBySection(execs)

	assets, err := p.store.ListArtifactsByKind(ctx, run.RunID, domain.ArtifactKindImage)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset artifacts: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	stamp := run.StartedAt.UTC()

	addFile := func(name, content string) error {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: stamp}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}

	if err := addFile("README.md", p.manifest(run, sections, failed, len(assets) > 0)); err != nil {
		return nil, err
	}

	for i, sec := range sections {
		dir := fmt.Sprintf("%02d-%s", i+1, slug(sec.name))
		if err := addFile(dir+"/README.md", sectionReadme(sec)); err != nil {
			return nil, err
		}
		for _, exec := range sec.execs {
			content := fmt.Sprintf("# %s\n\n%s\n", exec.DisplayName, exec.Output)
			if err := addFile(dir+"/"+exec.ItemID+".md", content); err != nil {
				return nil, err
			}
		}
	}

	if len(assets) > 0 {
		var b strings.Builder
		b.WriteString("# Brand Assets\n\nGenerated logo variants. The first entry is the primary mark.\n\n")
		for i, a := range assets {
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, a.Name, a.Payload)
		}
		if err := addFile("brand-assets/README.md", b.String()); err != nil {
			return nil, err
		}
	}

	if run.Deployment.LiveURL != "" || run.Deployment.PreviewURL != "" {
		var b strings.Builder
		b.WriteString("# Deployment\n\nYour generated website:\n\n")
		if run.Deployment.LiveURL != "" {
			fmt.Fprintf(&b, "- Live site: %s\n", run.Deployment.LiveURL)
		}
		if run.Deployment.PreviewURL != "" {
			fmt.Fprintf(&b, "- Preview: %s\n", run.Deployment.PreviewURL)
		}
		if err := addFile("deployment-info/README.md", b.String()); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// manifest renders the top-level read-me with the recommended reading order.
func (p *Packager) manifest(run *domain.Run, sections []section, failed []string, hasAssets bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Business Blueprint\n\n%s\n\n", run.Subject)
	fmt.Fprintf(&b, "_Generated %s_\n\n", run.StartedAt.UTC().Format(time.RFC3339))
	b.WriteString("## Recommended reading order\n\n")
	n := 0
	for i, sec := range sections {
		fmt.Fprintf(&b, "### %d. %s (`%02d-%s/`)\n\n", i+1, sec.name, i+1, slug(sec.name))
		for _, exec := range sec.execs {
			n++
			fmt.Fprintf(&b, "%d. %s\n", n, exec.DisplayName)
		}
		b.WriteString("\n")
	}
	if hasAssets {
		b.WriteString("Your generated brand assets are in `brand-assets/`.\n\n")
	}
	if run.Deployment.LiveURL != "" || run.Deployment.PreviewURL != "" {
		b.WriteString("Deployment details are in `deployment-info/`.\n\n")
	}
	if len(failed) > 0 {
		b.WriteString("Not included (generation failed): " + strings.Join(failed, ", ") + "\n")
	}
	return b.String()
}

func sectionReadme(sec section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nThis folder contains:\n\n", sec.name)
	for _, exec := range sec.execs {
		fmt.Fprintf(&b, "- `%s.md` — %s\n", exec.ItemID, exec.DisplayName)
	}
	return b.String()
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
