package sideeffect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/deploy"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
)

// Publish deploys the generated website blueprint through the external
// app-generation service, styled by the run's brand profile.
type Publish struct {
	store       store.Store
	deployer    deploy.Deployer
	brandItemID string
	wait        bool
}

// NewPublish creates the publish handler. brandItemID names the item whose
// output carries the style profile when no structured one was persisted.
func NewPublish(s store.Store, d deploy.Deployer, brandItemID string, waitForCompletion bool) *Publish {
	return &Publish{store: s, deployer: d, brandItemID: brandItemID, wait: waitForCompletion}
}

func (h *Publish) Name() string { return "publish" }

// Run parameterizes and submits the deployment, then annotates the item
// output with the live URL information. Failures append a warning block and
// leave the run-level deployment metadata unset.
func (h *Publish) Run(ctx context.Context, exec *domain.ItemExecution, run *domain.Run) error {
	profile := h.styleProfile(ctx, run.RunID)

	if profile.PrimaryLogo != "" && !h.deployer.Reachable(ctx, profile.PrimaryLogo) {
		log.Printf("WARN: primary logo %s unreachable, deploying without it", profile.PrimaryLogo)
		h.annotate(ctx, exec, warningBlock("Logo asset unreachable",
			fmt.Sprintf("proceeding without %s", profile.PrimaryLogo)))
		profile.PrimaryLogo = ""
	}

	result, err := h.deployer.Deploy(ctx, deploy.Request{
		Brief:             exec.Output,
		StylePrompt:       stylePrompt(profile),
		WaitForCompletion: h.wait,
	})
	if err != nil {
		h.annotate(ctx, exec, warningBlock("Site deployment failed", err.Error()))
		return fmt.Errorf("deploy: %w", err)
	}

	var b strings.Builder
	b.WriteString("\n\n### Live Deployment\n\n")
	fmt.Fprintf(&b, "- Preview: %s\n", result.PreviewURL)
	if result.LiveURL != "" {
		fmt.Fprintf(&b, "- Live site: %s\n", result.LiveURL)
	}
	h.annotate(ctx, exec, b.String())

	dep := domain.Deployment{
		ChatID:     result.ChatID,
		PreviewURL: result.PreviewURL,
		LiveURL:    result.LiveURL,
	}
	if err := h.store.UpdateRunDeployment(ctx, run.RunID, dep); err != nil {
		log.Printf("ERROR: failed to update run deployment: %v", err)
	}
	run.Deployment = dep
	return nil
}

// styleProfile prefers the structured artifact persisted by the fan-out
// handler and falls back to text-pattern extraction over the brand item's
// recorded output.
func (h *Publish) styleProfile(ctx context.Context, runID string) domain.StyleProfile {
	artifacts, err := h.store.ListArtifactsByKind(ctx, runID, domain.ArtifactKindStyleProfile)
	if err == nil && len(artifacts) > 0 {
		var profile domain.StyleProfile
		if jerr := json.Unmarshal([]byte(artifacts[len(artifacts)-1].Payload), &profile); jerr == nil {
			return profile
		}
	}

	exec, err := h.store.GetItemExecution(ctx, runID, h.brandItemID)
	if err != nil || exec == nil {
		return domain.StyleProfile{}
	}
	return ParseStyleProfile(exec.Output)
}

func (h *Publish) annotate(ctx context.Context, exec *domain.ItemExecution, block string) {
	appendOutput(ctx, h.store, exec, block)
}

func stylePrompt(p domain.StyleProfile) string {
	var parts []string
	if len(p.Colors) > 0 {
		parts = append(parts, "color palette "+strings.Join(p.Colors, ", "))
	}
	if p.Typography != "" {
		parts = append(parts, "typography: "+p.Typography)
	}
	if p.Mood != "" {
		parts = append(parts, "visual mood: "+p.Mood)
	}
	if p.PrimaryLogo != "" {
		parts = append(parts, "logo image: "+p.PrimaryLogo)
	}
	return strings.Join(parts, "; ")
}
