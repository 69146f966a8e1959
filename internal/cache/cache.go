package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// DefaultTTL bounds how long a postal lookup result is reused.
const DefaultTTL = 5 * time.Minute

type PostalCache interface {
	Get(ctx context.Context, key string) (*domain.AddressFragment, error)
	Set(ctx context.Context, key string, fragment *domain.AddressFragment) error
}

var ErrCacheMiss = errors.New("cache miss")

// Key builds the cache key for a country/postal code pair.
func Key(countryCode, postalCode string) string {
	return fmt.Sprintf("%s:%s", strings.ToLower(countryCode), postalCode)
}
