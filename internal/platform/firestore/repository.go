package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Decoder hydrates the strongly typed entity from a snapshot.
type Decoder[T any] func(ctx context.Context, snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// ReadRepository provides typed read helpers over one Firestore collection.
// The royalty data collaborators are read-only by design, so only the query
// surface is exposed.
type ReadRepository[T any] struct {
	provider   *Provider
	collection string
	decode     Decoder[T]
}

// NewReadRepository constructs a ReadRepository bound to a collection. The
// collection name is resolved through the provider's namespace.
func NewReadRepository[T any](provider *Provider, collection string, decode Decoder[T]) *ReadRepository[T] {
	if decode == nil {
		decode = StructDecoder[T]()
	}
	name := strings.TrimSpace(collection)
	if provider != nil {
		name = provider.Collection(name)
	}
	return &ReadRepository[T]{
		provider:   provider,
		collection: name,
		decode:     decode,
	}
}

// Get fetches the document by ID and decodes it into the typed entity.
func (r *ReadRepository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if strings.TrimSpace(id) == "" {
		return zero, WrapError(r.op("get"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return zero, err
	}

	snapshot, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return zero, WrapError(r.op("get"), err)
	}
	return r.decode(ctx, snapshot)
}

// Query executes a collection query and returns the decoded documents.
func (r *ReadRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]T, error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}

	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []T
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		decoded, err := r.decode(ctx, snapshot)
		if err != nil {
			return nil, fmt.Errorf("firestore: decode document %s: %w", snapshot.Ref.ID, err)
		}
		results = append(results, decoded)
	}
	return results, nil
}

func (r *ReadRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, WrapError(r.op("collection"), errors.New("firestore: provider is nil"))
	}
	if r.collection == "" {
		return nil, WrapError(r.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *ReadRepository[T]) op(action string) string {
	name := "firestore"
	if r != nil && r.collection != "" {
		name = r.collection
	}
	return fmt.Sprintf("%s.%s", name, strings.ToLower(action))
}

// StructDecoder populates the target struct using Firestore's native
// decoding.
func StructDecoder[T any]() Decoder[T] {
	return func(_ context.Context, snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		if err := snap.DataTo(&target); err != nil {
			return target, err
		}
		return target, nil
	}
}
