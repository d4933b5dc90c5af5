package mount

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

// defaultTracerName is the OpenTelemetry tracer name used by the
// coordinator. Spans go to the globally registered provider, which is a
// no-op unless the application installs one.
const defaultTracerName = "github.com/stratum-ui/stratum/pkg/mount"

// TransactionTelemetry carries timing collected while a transaction was
// being computed. Consumers ship it alongside the mutations so slow diffs
// can be attributed to a specific revision.
type TransactionTelemetry struct {
	// DiffStart is when the diff began.
	DiffStart time.Time

	// DiffEnd is when the diff finished.
	DiffEnd time.Time
}

// Duration returns how long the diff took.
func (t TransactionTelemetry) Duration() time.Duration {
	return t.DiffEnd.Sub(t.DiffStart)
}

// Transaction is one atomic batch of mutations moving a consumer from
// BaseRevision to Revision. Applying the mutations in order yields the
// tree at Revision.
type Transaction struct {
	// BaseRevision is the revision the mutations apply on top of.
	BaseRevision uint64

	// Revision is the revision the mutations produce.
	Revision uint64

	// Mutations is the ordered mutation list.
	Mutations []Mutation

	// Telemetry is timing recorded during the diff.
	Telemetry TransactionTelemetry
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// Reparenting enables move detection across parents. When false,
	// a moved subtree is torn down and recreated instead.
	Reparenting bool

	// TracerName overrides the OpenTelemetry tracer name.
	TracerName string

	// Logger is the structured logger. Default: slog.Default with a
	// component attribute.
	Logger *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*CoordinatorConfig)

// WithReparenting toggles move detection across parents.
func WithReparenting(enabled bool) CoordinatorOption {
	return func(c *CoordinatorConfig) {
		c.Reparenting = enabled
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) CoordinatorOption {
	return func(c *CoordinatorConfig) {
		c.TracerName = name
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *CoordinatorConfig) {
		c.Logger = logger
	}
}

func defaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Reparenting: true,
		TracerName:  defaultTracerName,
		Logger:      slog.Default().With("component", "mount"),
	}
}

// Coordinator turns commits on a shadow tree into transactions. It
// remembers the last root it handed out and diffs each new revision
// against it, so every mutation batch picks up exactly where the
// previous one left off.
//
// A Coordinator is safe for concurrent use, but transactions are
// serialized: two concurrent pulls never observe the same base.
type Coordinator struct {
	tree        *shadow.Tree
	reparenting bool
	tracer      trace.Tracer
	logger      *slog.Logger

	mu           sync.Mutex
	baseRoot     *shadow.Node
	baseRevision uint64
}

// NewCoordinator creates a coordinator for the given tree. The first
// PullTransaction produces a full from-scratch mount of the current
// tree, so consumers need no separate bootstrap path.
func NewCoordinator(tree *shadow.Tree, opts ...CoordinatorOption) *Coordinator {
	config := defaultCoordinatorConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// The initial base is the live root stripped of children. It shares
	// the root family, so the first diff creates the whole tree under an
	// unchanged root instead of failing the family check.
	root, _ := tree.Root()

	return &Coordinator{
		tree:        tree,
		reparenting: config.Reparenting,
		tracer:      otel.Tracer(config.TracerName),
		logger:      config.Logger,
		baseRoot:    root.Clone(shadow.WithChildren()),
	}
}

// BaseRevision returns the revision the next transaction will apply on
// top of.
func (c *Coordinator) BaseRevision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseRevision
}

// Base returns the last pulled root and its revision. This is the exact
// generation the transaction stream has reached, so state rebuilt from it
// splices cleanly into subsequent transactions. The root is immutable and
// safe to walk concurrently.
func (c *Coordinator) Base() (*shadow.Node, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseRoot, c.baseRevision
}

// PullTransaction diffs the tree's current revision against the last
// pulled one and returns the resulting transaction. It returns
// (nil, nil) when the tree has not moved since the previous pull.
func (c *Coordinator) PullTransaction(ctx context.Context) (*Transaction, error) {
	_, span := c.tracer.Start(ctx, "mount.pull_transaction")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	root, revision := c.tree.Root()
	if revision == c.baseRevision {
		recordEmptyPull()
		return nil, nil
	}

	start := time.Now()
	mutations, err := CalculateMutations(c.baseRoot, root, c.reparenting)
	end := time.Now()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diff failed")
		c.logger.Error("diff failed",
			"base_revision", c.baseRevision,
			"revision", revision,
			"error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("stratum.base_revision", int64(c.baseRevision)),
		attribute.Int64("stratum.revision", int64(revision)),
		attribute.Int("stratum.mutation_count", len(mutations)),
	)
	recordDiff(end.Sub(start), mutations)

	transaction := &Transaction{
		BaseRevision: c.baseRevision,
		Revision:     revision,
		Mutations:    mutations,
		Telemetry: TransactionTelemetry{
			DiffStart: start,
			DiffEnd:   end,
		},
	}

	c.baseRoot = root
	c.baseRevision = revision

	c.logger.Debug("pulled transaction",
		"revision", transaction.Revision,
		"mutations", len(transaction.Mutations),
		"diff_duration", transaction.Telemetry.Duration())

	return transaction, nil
}
