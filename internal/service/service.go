// Package service wires the catalog, engine, side effects and packager into
// the operations exposed over HTTP.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/deploy"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/imagegen"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/llm"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/retrieval"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/catalog"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/config"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/engine"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/packager"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/sideeffect"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/storage"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/policy"
)

// Sentinel errors callers inspect with errors.Is to pick a response code.
var (
	ErrRunNotFound     = errors.New("run not found")
	ErrRunNotFinished  = errors.New("run is not finished")
	ErrPackageNotFound = errors.New("package not found")
)

// Item ids carrying a side-effect trigger.
const (
	fanoutItemID  = "brand-identity"
	publishItemID = "website-blueprint"
)

// Service is the orchestration facade.
type Service struct {
	store     store.Store
	catalog   *catalog.Catalog
	engine    *engine.Engine
	packager  *packager.Packager
	policy    *policy.Engine
	retrieval retrieval.Provider
	config    *config.Config

	// runSem bounds concurrently executing runs across the whole service;
	// runs compete for one external API budget.
	runSem chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Deps carries the external collaborators injected into the service.
type Deps struct {
	Store     store.Store
	Catalog   *catalog.Catalog
	Generator llm.Generator
	Assets    imagegen.AssetGenerator
	Deployer  deploy.Deployer
	Retrieval retrieval.Provider // nil disables retrieved context
	Objects   storage.ObjectStore
	Policy    *policy.Engine
	Config    *config.Config
}

// New builds the service, the side-effect trigger table and the engine.
func New(d Deps) *Service {
	triggers := sideeffect.NewRegistry()
	triggers.MustRegister(fanoutItemID,
		func(ctx context.Context, tier domain.Tier) (bool, error) {
			ent, err := d.Policy.Entitlements(ctx, tier)
			return ent.Assets, err
		},
		sideeffect.NewAssetFanout(d.Store, d.Generator, d.Assets, d.Config.LogoVariants))
	triggers.MustRegister(publishItemID,
		func(ctx context.Context, tier domain.Tier) (bool, error) {
			ent, err := d.Policy.Entitlements(ctx, tier)
			return ent.Deploy, err
		},
		sideeffect.NewPublish(d.Store, d.Deployer, fanoutItemID, d.Config.DeployWait))

	maxRuns := d.Config.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 1
	}

	return &Service{
		store:     d.Store,
		catalog:   d.Catalog,
		engine:    engine.New(d.Store, d.Generator, triggers, engine.WithParallelism(d.Config.LevelParallelism)),
		packager:  packager.New(d.Store, d.Objects, d.Config.PackageLinkTTL),
		policy:    d.Policy,
		retrieval: d.Retrieval,
		config:    d.Config,
		runSem:    make(chan struct{}, maxRuns),
		cancels:   make(map[string]context.CancelFunc),
	}
}
