package di

import (
	"context"

	"canvasmirror/application/executor"
	"canvasmirror/application/guard"
	"canvasmirror/application/layout"
	"canvasmirror/application/orchestrator"
	"canvasmirror/application/planner"
	"canvasmirror/application/ports"
	"canvasmirror/application/reconcile"
	domainconfig "canvasmirror/domain/config"
	"canvasmirror/infrastructure/config"
	"canvasmirror/infrastructure/messaging/eventbridge"
	"canvasmirror/infrastructure/persistence/dynamodb"
	"canvasmirror/infrastructure/persistence/memory"
	"canvasmirror/pkg/auth"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideDomainConfig creates the domain configuration, with the lock
// TTL and rollback depth taken from the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	dc := domainconfig.LoadDomainConfig(cfg.Environment)
	dc.LockTTL = cfg.LockTTL
	dc.RollbackHistoryDepth = cfg.RollbackDepth
	return dc
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideContainerRepository creates a container repository
func ProvideContainerRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ContainerRepository {
	return dynamodb.NewContainerRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideReferenceRepository creates a reference repository
func ProvideReferenceRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ReferenceRepository {
	return dynamodb.NewReferenceRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger)
}

// ProvidePortRepository creates a port repository
func ProvidePortRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.PortRepository {
	return dynamodb.NewPortRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideEdgeRepository creates an edge repository
func ProvideEdgeRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.EdgeRepository {
	return dynamodb.NewEdgeRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideLockRepository creates a canvas-lock repository
func ProvideLockRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.LockRepository {
	return dynamodb.NewLockRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideLayoutRepository creates a layout-settings repository
func ProvideLayoutRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.LayoutRepository {
	return dynamodb.NewLayoutRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideVisibilityRepository creates a visibility repository
func ProvideVisibilityRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.VisibilityRepository {
	return dynamodb.NewVisibilityRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideSourceIndex creates the authoritative-entity index
func ProvideSourceIndex(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.SourceIndex {
	return dynamodb.NewSourceIndex(client, cfg.DynamoDBTable, logger)
}

// ProvideSourceReader exposes the source index read side
func ProvideSourceReader(index *dynamodb.SourceIndex) ports.SourceReader {
	return index
}

// ProvideSourceWriter exposes the controlled-exception write side
func ProvideSourceWriter(index *dynamodb.SourceIndex) ports.SourceWriter {
	return index
}

// ProvideEventPublisher creates the telemetry publisher
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	return eventbridge.NewPublisher(client, cfg.EventBusName, cfg.EventSource, logger)
}

// ProvideExecutionHistory creates the bounded rollback history.
// History is deliberately in-process: rollback depth is small and the
// record holds live inverse mutations that do not survive
// serialization.
func ProvideExecutionHistory(dc *domainconfig.DomainConfig) ports.ExecutionHistory {
	return memory.NewExecutionHistory(dc.RollbackHistoryDepth)
}

// ProvideReconcileBuilder creates the reconciliation-map builder
func ProvideReconcileBuilder(references ports.ReferenceRepository, logger *zap.Logger) *reconcile.Builder {
	return reconcile.NewBuilder(references, logger)
}

// ProvideSyncGuard creates the sync guard
func ProvideSyncGuard(containers ports.ContainerRepository, references ports.ReferenceRepository, logger *zap.Logger) *guard.SyncGuard {
	return guard.NewSyncGuard(containers, references, logger)
}

// ProvideMaterializer creates the layout materializer
func ProvideMaterializer(
	containers ports.ContainerRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	layouts ports.LayoutRepository,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *layout.Materializer {
	return layout.NewMaterializer(containers, portRepo, edges, layouts, dc, logger)
}

// ProvideIntentPlanner creates the intent planner
func ProvideIntentPlanner(
	containers ports.ContainerRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	reconciler *reconcile.Builder,
	materializer *layout.Materializer,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *planner.IntentPlanner {
	return planner.NewIntentPlanner(containers, portRepo, edges, reconciler, materializer, dc, logger)
}

// ProvideSourceEventPlanner creates the source-event planner
func ProvideSourceEventPlanner(
	containers ports.ContainerRepository,
	references ports.ReferenceRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	source ports.SourceReader,
	reconciler *reconcile.Builder,
	syncGuard *guard.SyncGuard,
	materializer *layout.Materializer,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *planner.SourceEventPlanner {
	return planner.NewSourceEventPlanner(containers, references, portRepo, edges, source, reconciler, syncGuard, materializer, dc, logger)
}

// ProvideEngine creates the execution engine
func ProvideEngine(
	containers ports.ContainerRepository,
	references ports.ReferenceRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	locks ports.LockRepository,
	layouts ports.LayoutRepository,
	visibility ports.VisibilityRepository,
	sourceWriter ports.SourceWriter,
	telemetry ports.EventPublisher,
	history ports.ExecutionHistory,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *executor.Engine {
	return executor.NewEngine(containers, references, portRepo, edges, locks, layouts, visibility, sourceWriter, telemetry, history, dc, logger)
}

// ProvideOrchestrator creates the orchestrator
func ProvideOrchestrator(
	intents *planner.IntentPlanner,
	events *planner.SourceEventPlanner,
	engine *executor.Engine,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *orchestrator.Orchestrator {
	return orchestrator.New(intents, events, engine, dc.LockTTL, logger)
}

// ProvideJWTValidator creates a JWT validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	})
}
