package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"avpackaging/internal/ledger"
	"avpackaging/internal/notifications"
	"avpackaging/internal/services"
	"avpackaging/internal/storage"
)

// MustOpenLedger opens a ledger.Store at the config's ledger path and
// registers cleanup.
func MustOpenLedger(t testing.TB, path string) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Blob is an object held by Blobs.
type Blob struct {
	Data        []byte
	ContentType string
}

// Blobs is an in-memory storage.Store. Fail* hooks inject errors by bucket
// and key; injected errors are wrapped as transfer errors.
type Blobs struct {
	mu       sync.Mutex
	buckets  map[string]map[string]Blob
	Deleted  map[string][]string
	Uploads  []string
	OnList   func(bucket, prefix string)
	FailList error
	// FailUpload maps "bucket/key" to the error returned when uploading it.
	FailUpload map[string]error
	// FailDelete maps "bucket/key" to the error returned when deleting it.
	FailDelete map[string]error
}

var _ storage.Store = (*Blobs)(nil)

// NewBlobs returns an empty store.
func NewBlobs() *Blobs {
	return &Blobs{
		buckets:    map[string]map[string]Blob{},
		Deleted:    map[string][]string{},
		FailUpload: map[string]error{},
		FailDelete: map[string]error{},
	}
}

// Put seeds an object.
func (b *Blobs) Put(bucket, key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bucket(bucket)[key] = Blob{Data: append([]byte(nil), data...)}
}

// Get returns a stored object.
func (b *Blobs) Get(bucket, key string) (Blob, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.buckets[bucket][key]
	return blob, ok
}

// Keys returns the sorted keys in bucket.
func (b *Blobs) Keys(bucket string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.buckets[bucket]))
	for key := range b.buckets[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (b *Blobs) bucket(name string) map[string]Blob {
	objects, ok := b.buckets[name]
	if !ok {
		objects = map[string]Blob{}
		b.buckets[name] = objects
	}
	return objects
}

func (b *Blobs) List(_ context.Context, bucket, prefix string) ([]storage.Object, error) {
	if b.OnList != nil {
		b.OnList(bucket, prefix)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailList != nil {
		return nil, services.Wrap(services.ErrTransfer, "", "list objects", bucket, b.FailList)
	}
	var objects []storage.Object
	for key, blob := range b.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, storage.Object{Key: key, Size: int64(len(blob.Data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (b *Blobs) Download(_ context.Context, bucket, key, dest string) error {
	b.mu.Lock()
	blob, ok := b.buckets[bucket][key]
	b.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrTransfer, "", "download object", fmt.Sprintf("%s/%s", bucket, key), os.ErrNotExist)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, blob.Data, 0o644)
}

func (b *Blobs) Upload(_ context.Context, bucket, key, src, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailUpload[bucket+"/"+key]; err != nil {
		return services.Wrap(services.ErrTransfer, "", "upload object", fmt.Sprintf("%s/%s", bucket, key), err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return services.Wrap(services.ErrTransfer, "", "upload object", src, err)
	}
	b.bucket(bucket)[key] = Blob{Data: data, ContentType: contentType}
	b.Uploads = append(b.Uploads, bucket+"/"+key)
	return nil
}

func (b *Blobs) Delete(_ context.Context, bucket string, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		if err := b.FailDelete[bucket+"/"+key]; err != nil {
			return services.Wrap(services.ErrTransfer, "", "delete object", fmt.Sprintf("%s/%s", bucket, key), err)
		}
	}
	for _, key := range keys {
		delete(b.buckets[bucket], key)
		b.Deleted[bucket] = append(b.Deleted[bucket], key)
	}
	return nil
}

// Notifier records published events.
type Notifier struct {
	mu     sync.Mutex
	Events []notifications.Event
	Err    error
}

var _ notifications.Service = (*Notifier)(nil)

func (n *Notifier) Publish(_ context.Context, event notifications.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, event)
	return n.Err
}

// Last returns the most recent event.
func (n *Notifier) Last() (notifications.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Events) == 0 {
		return notifications.Event{}, false
	}
	return n.Events[len(n.Events)-1], true
}
