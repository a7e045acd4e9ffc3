// Package routing implements the routing data store: durable storage of
// conversational endpoints, pending connection requests, and established
// connections for the handoff engine.
package routing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"handoff-router/internal/domain"
	"handoff-router/internal/repository"
)

// Partition discriminators for the five logical tables. A Store option can
// prefix them so tests and parallel deployments get isolated namespaces.
const (
	partitionBotInstances        = "botinstance"
	partitionUsers               = "user"
	partitionAggregationChannels = "aggregation"
	partitionConnectionRequests  = "connectionrequest"
	partitionConnections         = "connection"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	partitionPrefix string
	logger          *slog.Logger
}

// WithPartitionPrefix prefixes every partition discriminator, isolating this
// store's rows from other stores sharing the same physical table.
func WithPartitionPrefix(prefix string) Option {
	return func(o *options) { o.partitionPrefix = prefix }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Store is the persistence layer all routing decisions depend on. It composes
// five table accessors over one physical DynamoDB table, derives row keys
// from entity content, and holds no in-process state: every operation is a
// direct round-trip to the backing medium, so concurrent callers need no
// coordination at this layer.
type Store struct {
	botInstances        *repository.Table
	users               *repository.Table
	aggregationChannels *repository.Table
	connectionRequests  *repository.Table
	connections         *repository.Table

	logger      *slog.Logger
	provisioned chan struct{}
}

// NewStore creates a Store backed by the named DynamoDB table. It fails fast
// when the descriptor is missing or malformed, then kicks off best-effort
// background provisioning of the five namespaces: callers must tolerate a
// brief window after construction during which early calls can hit a
// not-yet-provisioned table, and should treat those as retryable.
func NewStore(api repository.API, tableName string, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("routing: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("routing: table name must not be empty")
	}

	o := options{logger: slog.Default().With("component", "routing")}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		logger:      o.logger,
		provisioned: make(chan struct{}),
	}
	for _, bind := range []struct {
		table     **repository.Table
		partition string
	}{
		{&s.botInstances, partitionBotInstances},
		{&s.users, partitionUsers},
		{&s.aggregationChannels, partitionAggregationChannels},
		{&s.connectionRequests, partitionConnectionRequests},
		{&s.connections, partitionConnections},
	} {
		t, err := repository.NewTable(api, tableName, o.partitionPrefix+bind.partition)
		if err != nil {
			return nil, err
		}
		*bind.table = t
	}

	go s.provision(context.Background())
	return s, nil
}

// provision ensures all five namespaces exist. Failures are logged and
// swallowed: a provisioning race with another instance, or a transient
// outage, must never fail construction.
func (s *Store) provision(ctx context.Context) {
	defer close(s.provisioned)
	for _, t := range []*repository.Table{
		s.botInstances, s.users, s.aggregationChannels, s.connectionRequests, s.connections,
	} {
		if err := t.EnsureExists(ctx); err != nil {
			s.logger.Error("background provisioning failed", "err", err)
		}
	}
}

// Provisioned returns a channel closed once background provisioning has
// finished, successfully or not. Tests use it to await setup
// deterministically.
func (s *Store) Provisioned() <-chan struct{} {
	return s.provisioned
}

// referenceKey derives the row key for a conversation reference.
func referenceKey(ref domain.ConversationReference) string {
	return ref.ID
}

// requestKey derives the row key for a connection request; one row per
// requestor endpoint.
func requestKey(req domain.ConnectionRequest) string {
	return req.Requestor.ID
}

// connectionKey derives the row key for a connection by concatenating both
// endpoint identifiers in call-order. The key is deliberately not symmetric:
// Connection(A,B) and Connection(B,A) occupy different rows.
func connectionKey(conn domain.Connection) string {
	return conn.Ref1.ID + conn.Ref2.ID
}

// referenceTable routes a conversation reference to the bot-instances or
// users table based on its bot flag.
func (s *Store) referenceTable(ref domain.ConversationReference) *repository.Table {
	if ref.IsBot {
		return s.botInstances
	}
	return s.users
}

// GetUsers returns every stored user endpoint, in no particular order.
func (s *Store) GetUsers(ctx context.Context) ([]domain.ConversationReference, error) {
	return scanTable(ctx, s.users, domain.DecodeConversationReference)
}

// GetBotInstances returns every stored bot-instance endpoint.
func (s *Store) GetBotInstances(ctx context.Context) ([]domain.ConversationReference, error) {
	return scanTable(ctx, s.botInstances, domain.DecodeConversationReference)
}

// GetAggregationChannels returns every stored aggregation channel.
func (s *Store) GetAggregationChannels(ctx context.Context) ([]domain.ConversationReference, error) {
	return scanTable(ctx, s.aggregationChannels, domain.DecodeConversationReference)
}

// GetConnectionRequests returns every pending connection request.
func (s *Store) GetConnectionRequests(ctx context.Context) ([]domain.ConnectionRequest, error) {
	return scanTable(ctx, s.connectionRequests, domain.DecodeConnectionRequest)
}

// GetConnections returns every established connection.
func (s *Store) GetConnections(ctx context.Context) ([]domain.Connection, error) {
	return scanTable(ctx, s.connections, domain.DecodeConnection)
}

// AddConversationReference stores ref in the bot-instances or users table
// depending on its bot flag. The boolean result is the sole success signal.
func (s *Store) AddConversationReference(ctx context.Context, ref domain.ConversationReference) bool {
	return s.insert(ctx, s.referenceTable(ref), referenceKey(ref), func() ([]byte, error) {
		return domain.EncodeConversationReference(ref)
	})
}

// RemoveConversationReference deletes ref from whichever table its bot flag
// routes to. Returns false when no row was removed.
func (s *Store) RemoveConversationReference(ctx context.Context, ref domain.ConversationReference) bool {
	return s.referenceTable(ref).Delete(ctx, referenceKey(ref))
}

// AddAggregationChannel stores ref as an aggregation channel.
func (s *Store) AddAggregationChannel(ctx context.Context, ref domain.ConversationReference) bool {
	return s.insert(ctx, s.aggregationChannels, referenceKey(ref), func() ([]byte, error) {
		return domain.EncodeConversationReference(ref)
	})
}

// RemoveAggregationChannel deletes ref from the aggregation-channels table.
func (s *Store) RemoveAggregationChannel(ctx context.Context, ref domain.ConversationReference) bool {
	return s.aggregationChannels.Delete(ctx, referenceKey(ref))
}

// AddConnectionRequest stores req keyed by its requestor. A later insert for
// the same requestor overwrites the earlier one.
func (s *Store) AddConnectionRequest(ctx context.Context, req domain.ConnectionRequest) bool {
	return s.insert(ctx, s.connectionRequests, requestKey(req), func() ([]byte, error) {
		return domain.EncodeConnectionRequest(req)
	})
}

// RemoveConnectionRequest deletes the pending request for req's requestor.
func (s *Store) RemoveConnectionRequest(ctx context.Context, req domain.ConnectionRequest) bool {
	return s.connectionRequests.Delete(ctx, requestKey(req))
}

// AddConnection stores conn under the concatenated endpoint identifiers.
func (s *Store) AddConnection(ctx context.Context, conn domain.Connection) bool {
	return s.insert(ctx, s.connections, connectionKey(conn), func() ([]byte, error) {
		return domain.EncodeConnection(conn)
	})
}

// RemoveConnection deletes conn using the same key derivation as AddConnection.
func (s *Store) RemoveConnection(ctx context.Context, conn domain.Connection) bool {
	return s.connections.Delete(ctx, connectionKey(conn))
}

func (s *Store) insert(ctx context.Context, t *repository.Table, key string, encode func() ([]byte, error)) bool {
	payload, err := encode()
	if err != nil {
		s.logger.Warn("encode failed", "key", key, "err", err)
		return false
	}
	return t.Insert(ctx, key, string(payload))
}

// scanTable materializes and decodes a full table scan. A row that fails to
// decode fails the whole scan: a corrupt payload signals a consistency
// problem the caller should see, not skip.
func scanTable[T any](ctx context.Context, t *repository.Table, decode func([]byte) (T, error)) ([]T, error) {
	rows, err := t.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	entities := make([]T, 0, len(rows))
	for _, row := range rows {
		entity, err := decode([]byte(row.Payload))
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
