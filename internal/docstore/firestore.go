package docstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"humidity-monitor/internal/mirror"
)

const firestoreWriteTimeout = 30 * time.Second

// FirestoreStore writes documents to Google Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore authenticates with the service account key at
// credentialPath; the project is taken from the key.
func NewFirestoreStore(ctx context.Context, credentialPath string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, firestore.DetectProjectID, option.WithCredentialsFile(credentialPath))
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Document(collection, key string) (mirror.Document, error) {
	ref := s.client.Collection(collection).Doc(key)
	if ref == nil {
		return nil, fmt.Errorf("invalid document path %q/%q", collection, key)
	}
	return &firestoreDocument{ref: ref}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreDocument struct {
	ref *firestore.DocumentRef
}

// Merge sets the given top-level keys with MergeAll, which never clears
// fields absent from the update.
func (d *firestoreDocument) Merge(ctx context.Context, fields map[string]mirror.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, firestoreWriteTimeout)
	defer cancel()

	data := make(map[string]interface{}, len(fields))
	for k, e := range fields {
		data[k] = map[string]interface{}{"t": e.T, "rh": e.RH}
	}
	if _, err := d.ref.Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("firestore set %s: %w", d.ref.Path, err)
	}
	return nil
}
