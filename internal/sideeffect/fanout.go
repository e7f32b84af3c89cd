package sideeffect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/imagegen"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/llm"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
)

const briefSystemPrompt = `You are a senior brand designer preparing an image generation brief.
Given a brand identity document, respond with a JSON object and nothing else:
{"prompt": "<image generation prompt for a logo>", "colors": ["#RRGGBB", ...], "typography": "<font direction>", "mood": "<one-line visual mood>"}
Respond with the JSON only, no extra commentary.`

// briefPayload is the structured contract for the secondary generative call.
type briefPayload struct {
	Prompt     string   `json:"prompt"`
	Colors     []string `json:"colors"`
	Typography string   `json:"typography"`
	Mood       string   `json:"mood"`
}

// AssetFanout generates N independent logo variants from the brand identity
// output and appends their references to the triggering item.
type AssetFanout struct {
	store    store.Store
	gen      llm.Generator
	assets   imagegen.AssetGenerator
	variants int
	// briefMaxTokens caps the secondary generative call.
	briefMaxTokens int
}

// NewAssetFanout creates the fan-out handler.
func NewAssetFanout(s store.Store, gen llm.Generator, assets imagegen.AssetGenerator, variants int) *AssetFanout {
	if variants <= 0 {
		variants = 4
	}
	return &AssetFanout{
		store:          s,
		gen:            gen,
		assets:         assets,
		variants:       variants,
		briefMaxTokens: 300,
	}
}

func (h *AssetFanout) Name() string { return "asset_fanout" }

// Run derives a generation brief, requests the variants, and annotates the
// item output. On any failure it appends a warning block instead.
func (h *AssetFanout) Run(ctx context.Context, exec *domain.ItemExecution, run *domain.Run) error {
	brief, profile := h.deriveBrief(ctx, exec)

	urls, err := h.assets.Generate(ctx, brief, h.variants)
	if err != nil {
		h.annotate(ctx, exec, warningBlock("Brand asset generation failed", err.Error()))
		return fmt.Errorf("asset generation: %w", err)
	}
	if len(urls) == 0 {
		h.annotate(ctx, exec, warningBlock("Brand asset generation failed", "service returned no assets"))
		return fmt.Errorf("asset generation: service returned no assets")
	}

	profile.PrimaryLogo = urls[0]
	h.persistProfile(ctx, run.RunID, exec.ItemID, profile)

	var b strings.Builder
	b.WriteString("\n\n### Generated Brand Assets\n\n")
	for i, u := range urls {
		if i == 0 {
			fmt.Fprintf(&b, "%d. %s (primary)\n", i+1, u)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, u)
		}
		h.persistAsset(ctx, run.RunID, exec.ItemID, i+1, u)
	}
	h.annotate(ctx, exec, b.String())
	return nil
}

// deriveBrief asks the generative service for a structured brief. A payload
// that fails the schema falls back to text-pattern extraction over the brand
// identity output.
func (h *AssetFanout) deriveBrief(ctx context.Context, exec *domain.ItemExecution) (string, domain.StyleProfile) {
	res, err := h.gen.Invoke(ctx, llm.Request{
		System:    briefSystemPrompt,
		User:      exec.Output,
		MaxTokens: h.briefMaxTokens,
	})
	if err == nil {
		var payload briefPayload
		if jerr := json.Unmarshal([]byte(extractJSON(res.Text)), &payload); jerr == nil && payload.Prompt != "" {
			return payload.Prompt, domain.StyleProfile{
				Colors:     payload.Colors,
				Typography: payload.Typography,
				Mood:       payload.Mood,
			}
		}
	}

	profile := ParseStyleProfile(exec.Output)
	brief := fmt.Sprintf("Minimal modern logo for %q", exec.DisplayName)
	if len(profile.Colors) > 0 {
		brief += ", palette " + strings.Join(profile.Colors, " ")
	}
	if profile.Mood != "" {
		brief += ", mood: " + profile.Mood
	}
	return brief, profile
}

func (h *AssetFanout) persistProfile(ctx context.Context, runID, itemID string, profile domain.StyleProfile) {
	payload, err := json.Marshal(profile)
	if err != nil {
		return
	}
	persistArtifact(ctx, h.store, &domain.Artifact{
		ArtifactID: "art_" + uuid.New().String()[:8],
		RunID:      runID,
		ItemID:     itemID,
		Name:       "style-profile.json",
		Kind:       domain.ArtifactKindStyleProfile,
		Payload:    string(payload),
		CreatedAt:  time.Now(),
	})
}

func (h *AssetFanout) persistAsset(ctx context.Context, runID, itemID string, index int, url string) {
	persistArtifact(ctx, h.store, &domain.Artifact{
		ArtifactID: "art_" + uuid.New().String()[:8],
		RunID:      runID,
		ItemID:     itemID,
		Name:       fmt.Sprintf("logo-variant-%d", index),
		Kind:       domain.ArtifactKindImage,
		Payload:    url,
		CreatedAt:  time.Now(),
	})
}

func (h *AssetFanout) annotate(ctx context.Context, exec *domain.ItemExecution, block string) {
	appendOutput(ctx, h.store, exec, block)
}

// extractJSON trims prose around the first JSON object in a response. Models
// occasionally wrap the payload despite the contract.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
