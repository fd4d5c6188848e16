package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sjsage522/pricewatch/internal/extractor"
)

// Price accepts either a JSON number or a string such as "1,299" or "₹999.50"
type Price float64

// UnmarshalJSON implements json.Unmarshaler
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		// unparseable strings read as zero and fail the required-field check
		v, _ := extractor.ParsePrice(s)
		*p = Price(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("price must be a number: %w", err)
	}
	*p = Price(v)
	return nil
}

type addProductRequest struct {
	Email     string `json:"email"`
	ProdURL   string `json:"prodUrl"`
	Price     Price  `json:"price"`
	ProductID string `json:"productId"`
	Title     string `json:"title"`
}

type checkPriceRequest struct {
	ProductID string `json:"productId"`
}

type editProductRequest struct {
	Price   *Price  `json:"price"`
	Title   *string `json:"title"`
	ProdURL *string `json:"prodUrl"`
}
