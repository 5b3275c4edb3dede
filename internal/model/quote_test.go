package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteExpiry(t *testing.T) {
	fetched := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	q := &Quote{FetchedAt: fetched}

	assert.False(t, q.Expired(fetched.Add(29*time.Second)))
	assert.False(t, q.Expired(fetched.Add(QuoteTTL)), "a quote is usable up to and including its TTL")
	assert.True(t, q.Expired(fetched.Add(31*time.Second)))
}

func TestQuoteAge(t *testing.T) {
	fetched := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	q := &Quote{FetchedAt: fetched}

	assert.Equal(t, 25*time.Second, q.Age(fetched.Add(25*time.Second)))
}
