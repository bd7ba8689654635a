package state

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	snapshotCollection = "snapshots"

	// The engine is single-user, so the whole state lives in one document.
	snapshotDocID = "default"
)

type firestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore persists the snapshot as a single Firestore document,
// doubling as the best-effort remote sync target.
func NewFirestoreStore(client *firestore.Client) Store {
	return &firestoreStore{client: client}
}

func (s *firestoreStore) Load(ctx context.Context) (Snapshot, error) {
	doc, err := s.client.Collection(snapshotCollection).Doc(snapshotDocID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := doc.DataTo(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *firestoreStore) Save(ctx context.Context, snapshot Snapshot) error {
	_, err := s.client.Collection(snapshotCollection).Doc(snapshotDocID).Set(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
