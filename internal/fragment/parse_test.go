package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoval/fragsnipe/internal/model"
)

const numbersPageHTML = `
<html><body>
<table class="tm-table">
<tr><th>Number</th><th>Price</th><th>Status</th></tr>
<tr class="tm-row-selectable">
  <td><a class="table-cell" href="/number/88812345678">
    <div class="table-cell-value">+888 1234 5678</div>
  </a></td>
  <td><div class="icon-before icon-ton">1,350</div></td>
  <td><div class="tm-status-avail">Available</div></td>
</tr>
<tr class="tm-row-selectable">
  <td><a class="table-cell" href="/number/88898765432">
    <div class="table-cell-value">+888 9876 5432</div>
  </a></td>
  <td><div class="icon-before icon-ton">720</div></td>
  <td><div class="tm-status-sold">Sold</div></td>
</tr>
<tr class="tm-row-selectable">
  <td><a class="table-cell" href="/number/88855555555">
    <div class="table-cell-value">+888 5555 5555</div>
  </a></td>
  <td><div class="icon-before icon-ton">Auction</div></td>
  <td><div class="tm-status-bid">On auction</div></td>
</tr>
<tr>
  <td><a class="table-cell" href="/number/88800000000">ignored, not selectable</a></td>
</tr>
</table>
</body></html>`

const usernamesPageHTML = `
<html><body>
<table class="tm-table">
<tr><th>Username</th><th>Price</th></tr>
<tr>
  <td>For sale</td>
  <td><a href="/username/cryptoking">@cryptoking</a></td>
  <td>2,500 TON</td>
</tr>
<tr>
  <td></td>
  <td><a href="/username/shortname">@shortname</a></td>
  <td>99 TON</td>
</tr>
<tr>
  <td>Taken</td>
  <td><a href="/username/nopricerow">@nopricerow</a></td>
  <td>negotiable</td>
</tr>
</table>
</body></html>`

func TestParseNumberRows(t *testing.T) {
	listings, err := parseListings(model.KindNumbers, numbersPageHTML)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	first := listings[0]
	assert.Equal(t, "88812345678", first.ID)
	assert.Equal(t, "+888 1234 5678", first.DisplayLabel)
	assert.Equal(t, "Available", first.Status)
	require.NotNil(t, first.PriceTON)
	assert.Equal(t, int64(1350), *first.PriceTON)

	assert.Equal(t, "88898765432", listings[1].ID)
	assert.Equal(t, "Sold", listings[1].Status)
	require.NotNil(t, listings[1].PriceTON)
	assert.Equal(t, int64(720), *listings[1].PriceTON)

	// Auction rows carry no numeric price but are still reported.
	assert.Equal(t, "88855555555", listings[2].ID)
	assert.Nil(t, listings[2].PriceTON)
	assert.Equal(t, "Auction", listings[2].RawPriceText)
	assert.Equal(t, "On auction", listings[2].Status)
}

func TestParseUsernameRows(t *testing.T) {
	listings, err := parseListings(model.KindUsernames, usernamesPageHTML)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "cryptoking", first.ID)
	assert.Equal(t, "cryptoking", first.DisplayLabel)
	assert.Equal(t, "For sale", first.Status)
	require.NotNil(t, first.PriceTON)
	assert.Equal(t, int64(2500), *first.PriceTON)

	second := listings[1]
	assert.Equal(t, "shortname", second.ID)
	assert.Equal(t, "For sale", second.Status)
	require.NotNil(t, second.PriceTON)
	assert.Equal(t, int64(99), *second.PriceTON)
}

func TestParseListingsEmptyPage(t *testing.T) {
	listings, err := parseListings(model.KindNumbers, "<html><body></body></html>")
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *int64
	}{
		{name: "plain", in: "720", want: int64Ptr(720)},
		{name: "thousands separator", in: "1,350", want: int64Ptr(1350)},
		{name: "nbsp grouping", in: "12 500", want: int64Ptr(12500)},
		{name: "trailing unit", in: "2500 TON", want: int64Ptr(2500)},
		{name: "no digits", in: "Auction", want: nil},
		{name: "empty", in: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePrice(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func int64Ptr(n int64) *int64 { return &n }
