package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestListingKey(t *testing.T) {
	tests := []struct {
		name string
		a    Listing
		b    Listing
		same bool
	}{
		{
			name: "identical listings share a key",
			a:    Listing{ID: "888123", PriceTON: ptr(500), Status: "Available"},
			b:    Listing{ID: "888123", PriceTON: ptr(500), Status: "Available"},
			same: true,
		},
		{
			name: "price change produces a new key",
			a:    Listing{ID: "888123", PriceTON: ptr(500), Status: "Available"},
			b:    Listing{ID: "888123", PriceTON: ptr(450), Status: "Available"},
			same: false,
		},
		{
			name: "status change produces a new key",
			a:    Listing{ID: "888123", PriceTON: ptr(500), Status: "Available"},
			b:    Listing{ID: "888123", PriceTON: ptr(500), Status: "Sold"},
			same: false,
		},
		{
			name: "unparsed price is distinct from zero price",
			a:    Listing{ID: "888123", PriceTON: nil},
			b:    Listing{ID: "888123", PriceTON: ptr(0)},
			same: false,
		},
		{
			name: "unparsed prices still share a key",
			a:    Listing{ID: "888123", RawPriceText: "n/a"},
			b:    Listing{ID: "888123", RawPriceText: "n/a"},
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, tt.a.Key() == tt.b.Key())
		})
	}
}

func TestAffordable(t *testing.T) {
	assert.True(t, Listing{PriceTON: ptr(80)}.Affordable(100))
	assert.True(t, Listing{PriceTON: ptr(100)}.Affordable(100))
	assert.False(t, Listing{PriceTON: ptr(150)}.Affordable(100))
	assert.False(t, Listing{PriceTON: nil}.Affordable(100))
}

func TestCheapestAffordable(t *testing.T) {
	listings := []Listing{
		{ID: "a", PriceTON: ptr(150)},
		{ID: "b", PriceTON: ptr(80)},
		{ID: "c", PriceTON: nil},
		{ID: "d", PriceTON: ptr(95)},
	}

	cheapest, ok := CheapestAffordable(listings, 100)
	require.True(t, ok)
	assert.Equal(t, "b", cheapest.ID)

	_, ok = CheapestAffordable(listings, 50)
	assert.False(t, ok)

	_, ok = CheapestAffordable(nil, 100)
	assert.False(t, ok)
}
