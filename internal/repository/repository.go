package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrSnapshotNotFound = errors.New("cart snapshot not found")
	ErrCorruptSnapshot  = errors.New("cart snapshot is corrupt")
)

// SnapshotRepository persists the serialized cart under a fixed storage key.
// Consumers define this interface, not the storage implementation
type SnapshotRepository interface {
	LoadSnapshot(ctx context.Context, key string) ([]domain.LineItem, error)
	SaveSnapshot(ctx context.Context, key string, items []domain.LineItem) error
	DeleteSnapshot(ctx context.Context, key string) error
	Close() error
}

func encodeItems(items []domain.LineItem) (string, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal cart snapshot failed: %w", err)
	}
	return string(payload), nil
}

func decodeItems(payload string) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return items, nil
}
