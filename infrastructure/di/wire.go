//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"canvasmirror/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers.
// Container itself is declared in wire_gen.go so the normal build
// carries exactly one definition.
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideContainerRepository,
	ProvideReferenceRepository,
	ProvidePortRepository,
	ProvideEdgeRepository,
	ProvideLockRepository,
	ProvideLayoutRepository,
	ProvideVisibilityRepository,
	ProvideSourceIndex,
	ProvideSourceReader,
	ProvideSourceWriter,
	ProvideEventPublisher,
	ProvideExecutionHistory,
	ProvideReconcileBuilder,
	ProvideSyncGuard,
	ProvideMaterializer,
	ProvideIntentPlanner,
	ProvideSourceEventPlanner,
	ProvideEngine,
	ProvideOrchestrator,
	ProvideJWTValidator,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
