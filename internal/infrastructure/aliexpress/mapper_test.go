package aliexpress

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheapmatch/backend/internal/domain"
)

func TestGatewayResponse_Products(t *testing.T) {
	body := `{
		"aliexpress_affiliate_product_query_response": {
			"resp_result": {
				"resp_code": 200,
				"resp_msg": "success",
				"result": {
					"products": {
						"product": [
							{"product_id": 1005001, "product_title": "Wireless Mouse", "target_sale_price": "9.99", "target_sale_price_currency": "USD"},
							{"product_id": "1005002", "product_title": "Mouse Pad", "target_sale_price": 3.5, "target_sale_price_currency": "USD"}
						]
					}
				}
			}
		}
	}`

	var gw gatewayResponse
	require.NoError(t, json.Unmarshal([]byte(body), &gw))

	products := gw.products()
	require.Len(t, products, 2)
	assert.Equal(t, flexString("1005001"), products[0].ProductID)
	assert.Equal(t, flexString("3.5"), products[1].TargetSalePrice)
}

func TestGatewayResponse_EmptyResult(t *testing.T) {
	var gw gatewayResponse
	require.NoError(t, json.Unmarshal([]byte(`{"aliexpress_affiliate_product_query_response":{"resp_result":{"resp_code":405,"result":null}}}`), &gw))
	assert.Empty(t, gw.products())
}

func TestMapToCandidate(t *testing.T) {
	tests := []struct {
		name    string
		product product
		want    domain.Candidate
		wantOK  bool
	}{
		{
			name: "target price and promotion link",
			product: product{
				ProductID: "1", ProductTitle: " Mouse ", TargetSalePrice: "12.50", TargetSalePriceCurrency: "CAD",
				ProductMainImageURL: "https://img/1.jpg", PromotionLink: "https://s.click/1", ProductDetailURL: "https://detail/1",
			},
			want: domain.Candidate{
				ID: "1", Title: "Mouse", Price: 12.5, Currency: domain.CurrencyCAD,
				ImageURL: "https://img/1.jpg", DestinationURL: "https://s.click/1",
			},
			wantOK: true,
		},
		{
			name:    "falls back to sale price and detail url",
			product: product{ProductID: "2", ProductTitle: "Mouse", SalePrice: "1,024.00", SalePriceCurrency: "USD", ProductDetailURL: "https://detail/2"},
			want:    domain.Candidate{ID: "2", Title: "Mouse", Price: 1024, Currency: domain.CurrencyUSD, DestinationURL: "https://detail/2"},
			wantOK:  true,
		},
		{
			name:    "missing currency code is the requested one",
			product: product{ProductID: "3", ProductTitle: "Mouse", TargetSalePrice: "5"},
			want:    domain.Candidate{ID: "3", Title: "Mouse", Price: 5, Currency: domain.CurrencyUSD},
			wantOK:  true,
		},
		{
			name: "target price in another currency falls back to sale price",
			product: product{
				ProductID: "7", ProductTitle: "Mouse",
				TargetSalePrice: "7", TargetSalePriceCurrency: "CAD", SalePrice: "5", SalePriceCurrency: "USD",
			},
			want:   domain.Candidate{ID: "7", Title: "Mouse", Price: 5, Currency: domain.CurrencyUSD},
			wantOK: true,
		},
		{name: "unsupported currency", product: product{ProductID: "8", ProductTitle: "Mouse", TargetSalePrice: "5", TargetSalePriceCurrency: "EUR"}},
		{name: "sale price in another currency", product: product{ProductID: "9", ProductTitle: "Mouse", SalePrice: "50", SalePriceCurrency: "CAD"}},
		{name: "missing id", product: product{ProductTitle: "Mouse", TargetSalePrice: "5"}},
		{name: "missing title", product: product{ProductID: "4", TargetSalePrice: "5"}},
		{name: "unparsable price", product: product{ProductID: "5", ProductTitle: "Mouse", TargetSalePrice: "n/a"}},
		{name: "zero price", product: product{ProductID: "6", ProductTitle: "Mouse", TargetSalePrice: "0.00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapToCandidate(tt.product, domain.CurrencyUSD)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMapToCandidate_CADSearchDropsUSDPrices(t *testing.T) {
	p := product{ProductID: "10", ProductTitle: "Mouse", SalePrice: "50", SalePriceCurrency: "USD"}

	_, ok := mapToCandidate(p, domain.CurrencyCAD)
	assert.False(t, ok)

	p.TargetSalePrice, p.TargetSalePriceCurrency = "68.40", "CAD"
	got, ok := mapToCandidate(p, domain.CurrencyCAD)
	require.True(t, ok)
	assert.Equal(t, domain.CurrencyCAD, got.Currency)
	assert.InDelta(t, 68.4, got.Price, 1e-9)
}
