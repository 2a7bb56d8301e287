package cache

import (
	"context"
	"encoding/json"
	"time"
)

const (
	priceKeyPrefix    = "prices-"
	currencyKeyPrefix = "currencies-"

	// CurrencyLatestKey is the floating pointer to the most recent rate record.
	CurrencyLatestKey = "currencies-latest"

	dateFormat = "2006-01-02"
)

// ObjectCache is the persistent key/object store the coordinator serializes
// all price and currency data through. Price objects are immutable once
// created; CreateObject must not overwrite an existing key.
type ObjectCache interface {
	Has(ctx context.Context, key string) (bool, error)
	RetrieveObject(ctx context.Context, key string) (json.RawMessage, bool, error)
	CreateObject(ctx context.Context, key string, value json.RawMessage, forceSync bool) error
	DeleteObject(ctx context.Context, key string, forceSync bool) error
	Keys(ctx context.Context) ([]string, error)
}

func PriceKey(date time.Time) string {
	return priceKeyPrefix + date.Format(dateFormat)
}

func CurrencyKey(date time.Time) string {
	return currencyKeyPrefix + date.Format(dateFormat)
}

// KeyDate extracts the date from a dated price or currency key. The second
// return is false for undated keys such as the latest pointer.
func KeyDate(key string) (time.Time, bool) {
	for _, prefix := range []string{priceKeyPrefix, currencyKeyPrefix} {
		if len(key) == len(prefix)+len(dateFormat) && key[:len(prefix)] == prefix {
			t, err := time.Parse(dateFormat, key[len(prefix):])
			if err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
