package aliexpress

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cheapmatch/backend/internal/domain"
)

// flexString accepts JSON strings and numbers alike; the gateway is not
// consistent about which one it sends for ids and prices
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// product is one item in a query or detail response
type product struct {
	ProductID               flexString `json:"product_id"`
	ProductTitle            string     `json:"product_title"`
	TargetSalePrice         flexString `json:"target_sale_price"`
	TargetSalePriceCurrency string     `json:"target_sale_price_currency"`
	SalePrice               flexString `json:"sale_price"`
	SalePriceCurrency       string     `json:"sale_price_currency"`
	ProductMainImageURL     string     `json:"product_main_image_url"`
	PromotionLink           string     `json:"promotion_link"`
	ProductDetailURL        string     `json:"product_detail_url"`
}

type respResult struct {
	RespCode flexString `json:"resp_code"`
	RespMsg  string     `json:"resp_msg"`
	Result   *struct {
		Products *struct {
			Product []product `json:"product"`
		} `json:"products"`
	} `json:"result"`
}

type methodResponse struct {
	RespResult *respResult `json:"resp_result"`
}

type errorResponse struct {
	Code      flexString `json:"code"`
	Msg       string     `json:"msg"`
	RequestID string     `json:"request_id"`
}

// gatewayResponse covers both API methods; at most one of the method
// responses is present
type gatewayResponse struct {
	ErrorResponse  *errorResponse  `json:"error_response"`
	QueryResponse  *methodResponse `json:"aliexpress_affiliate_product_query_response"`
	DetailResponse *methodResponse `json:"aliexpress_affiliate_productdetail_get_response"`
}

// products returns the product list of whichever method responded
func (g *gatewayResponse) products() []product {
	for _, r := range []*methodResponse{g.QueryResponse, g.DetailResponse} {
		if r == nil || r.RespResult == nil || r.RespResult.Result == nil || r.RespResult.Result.Products == nil {
			continue
		}
		return r.RespResult.Result.Products.Product
	}
	return nil
}

// mapToCandidate converts a catalog product to a domain candidate.
// Returns false for products missing an id, a title or a positive price in
// the requested currency.
func mapToCandidate(p product, requested domain.Currency) (domain.Candidate, bool) {
	id := strings.TrimSpace(string(p.ProductID))
	title := strings.TrimSpace(p.ProductTitle)
	if id == "" || title == "" {
		return domain.Candidate{}, false
	}

	price, ok := quotedPrice(requested, p.TargetSalePrice, p.TargetSalePriceCurrency)
	if !ok {
		price, ok = quotedPrice(requested, p.SalePrice, p.SalePriceCurrency)
	}
	if !ok {
		return domain.Candidate{}, false
	}

	destination := p.PromotionLink
	if destination == "" {
		destination = p.ProductDetailURL
	}

	return domain.Candidate{
		ID:             id,
		Title:          title,
		Price:          price,
		Currency:       requested,
		ImageURL:       p.ProductMainImageURL,
		DestinationURL: destination,
	}, true
}

// quotedPrice returns a positive price only when it is quoted in the requested
// currency. A missing currency code means the requested one.
func quotedPrice(requested domain.Currency, raw flexString, code string) (float64, bool) {
	price := parsePrice(raw)
	if price <= 0 {
		return 0, false
	}
	if strings.TrimSpace(code) == "" {
		return price, true
	}
	c, err := domain.ParseCurrency(code)
	if err != nil || c != requested {
		return 0, false
	}
	return price, true
}

// parsePrice reads prices like "12.34" or "1,234.50"; unparsable input yields 0
func parsePrice(raw flexString) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(string(raw)), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
