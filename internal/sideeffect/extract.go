package sideeffect

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
)

var (
	hexColorRe   = regexp.MustCompile(`#[0-9a-fA-F]{6}\b`)
	typographyRe = regexp.MustCompile(`(?im)^.*typography[^:]*:\s*(.+)$`)
	moodRe       = regexp.MustCompile(`(?im)^.*mood[^:]*:\s*(.+)$`)
)

// ParseStyleProfile extracts brand attributes from free-text output. This is
// the fallback path; the structured style-profile artifact is preferred.
func ParseStyleProfile(text string) domain.StyleProfile {
	profile := domain.StyleProfile{}

	seen := make(map[string]bool)
	for _, c := range hexColorRe.FindAllString(text, -1) {
		c = strings.ToUpper(c)
		if !seen[c] {
			seen[c] = true
			profile.Colors = append(profile.Colors, c)
		}
		if len(profile.Colors) == 5 {
			break
		}
	}
	if m := typographyRe.FindStringSubmatch(text); m != nil {
		profile.Typography = strings.TrimSpace(m[1])
	}
	if m := moodRe.FindStringSubmatch(text); m != nil {
		profile.Mood = strings.TrimSpace(m[1])
	}
	return profile
}

// warningBlock renders a visible warning annotation for an item output.
func warningBlock(title, detail string) string {
	return fmt.Sprintf("\n\n> **Warning — %s.** %s\n", title, detail)
}

// appendOutput appends a block to the item's recorded output, in memory and
// in the store. Persistence failures are logged, not propagated.
func appendOutput(ctx context.Context, s store.Store, exec *domain.ItemExecution, block string) {
	exec.Output += block
	if err := s.UpdateItemOutput(ctx, exec.RunID, exec.ItemID, exec.Output); err != nil {
		log.Printf("ERROR: failed to persist output annotation for %s/%s: %v", exec.RunID, exec.ItemID, err)
	}
}

func persistArtifact(ctx context.Context, s store.Store, artifact *domain.Artifact) {
	if err := s.CreateArtifact(ctx, artifact); err != nil {
		log.Printf("ERROR: failed to persist artifact %s: %v", artifact.Name, err)
	}
}
