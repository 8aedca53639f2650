package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentbook/internal/blob"
	"agentbook/pkg/domain"
)

// BackupPrefix is the key prefix of every archived snapshot.
const BackupPrefix = "backups/"

const backupContentType = "application/json"

// Archive writes store snapshots to a blob store and restores them.
type Archive struct {
	store   domain.PersistentStore
	blobs   blob.Store
	metrics MetricsRecorder
	now     func() time.Time
	newID   func() string
}

// NewArchive binds a persistent store to a blob store.
func NewArchive(store domain.PersistentStore, blobs blob.Store, metrics MetricsRecorder) *Archive {
	if metrics == nil {
		metrics = noopMetricsRecorder{}
	}
	return &Archive{
		store:   store,
		blobs:   blobs,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// BackupKey builds the object key for a snapshot taken at ts.
func BackupKey(ts time.Time, id string) string {
	return fmt.Sprintf("%s%s-%s.json", BackupPrefix, ts.UTC().Format("20060102T150405Z"), id)
}

// Backup uploads the current snapshot and returns the stored object info.
func (a *Archive) Backup(ctx context.Context) (blob.Info, error) {
	start := time.Now()
	info, err := a.backup(ctx)
	a.metrics.Observe(ctx, "backup", err == nil, time.Since(start))
	return info, err
}

func (a *Archive) backup(ctx context.Context) (blob.Info, error) {
	snapshot := a.store.ExportState()
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := BackupKey(a.now(), a.newID())
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: backupContentType,
		Metadata: map[string]string{
			"contacts":     fmt.Sprint(len(snapshot.Contacts)),
			"policies":     fmt.Sprint(len(snapshot.Policies)),
			"contracts":    fmt.Sprint(len(snapshot.Contracts)),
			"appointments": fmt.Sprint(len(snapshot.Appointments)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("put %s: %w", key, err)
	}
	return info, nil
}

// List returns archived snapshots ordered by key, oldest first.
func (a *Archive) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := a.blobs.List(ctx, BackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return infos, nil
}

// Restore replaces the store state with the snapshot stored under key. The
// snapshot is validated before anything is replaced.
func (a *Archive) Restore(ctx context.Context, key string) (domain.Snapshot, error) {
	start := time.Now()
	snapshot, err := a.restore(ctx, key)
	a.metrics.Observe(ctx, "restore", err == nil, time.Since(start))
	return snapshot, err
}

func (a *Archive) restore(ctx context.Context, key string) (domain.Snapshot, error) {
	key = backupObjectKey(key)
	_, rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()

	var snapshot domain.Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if err := a.store.ImportState(ctx, snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("restore %s: %w", key, err)
	}
	return snapshot, nil
}

// Delete removes the snapshot stored under key and reports whether it existed.
func (a *Archive) Delete(ctx context.Context, key string) (bool, error) {
	key = backupObjectKey(key)
	existed, err := a.blobs.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return existed, nil
}

// Prune deletes every snapshot except the newest keep and returns the removed
// keys, oldest first.
func (a *Archive) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative: %d", keep)
	}
	start := time.Now()
	removed, err := a.prune(ctx, keep)
	a.metrics.Observe(ctx, "prune", err == nil, time.Since(start))
	return removed, err
}

func (a *Archive) prune(ctx context.Context, keep int) ([]string, error) {
	infos, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keep {
		return nil, nil
	}
	var removed []string
	for _, info := range infos[:len(infos)-keep] {
		if _, err := a.blobs.Delete(ctx, info.Key); err != nil {
			return removed, fmt.Errorf("delete %s: %w", info.Key, err)
		}
		removed = append(removed, info.Key)
	}
	return removed, nil
}

// URL returns a download link for the snapshot under key, valid for expiry.
// A zero expiry leaves the lifetime to the blob backend.
func (a *Archive) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key = backupObjectKey(key)
	if _, err := a.blobs.Head(ctx, key); err != nil {
		return "", fmt.Errorf("head %s: %w", key, err)
	}
	url, err := a.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Method: http.MethodGet, Expiry: expiry})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url, nil
}

func backupObjectKey(key string) string {
	if strings.HasPrefix(key, BackupPrefix) {
		return key
	}
	return BackupPrefix + key
}
