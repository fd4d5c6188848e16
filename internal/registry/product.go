package registry

import "time"

// DefaultHistoryLimit is the number of price samples kept per product. It is
// also the upper bound for any configured limit.
const DefaultHistoryLimit = 30

// PricePoint is a single observed price
type PricePoint struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
}

// TrackedProduct is a monitored product page and its price ledger
type TrackedProduct struct {
	ID            string       `json:"id"`
	URL           string       `json:"url"`
	Title         string       `json:"title"`
	TargetPrice   float64      `json:"targetPrice"`
	LastPrice     *float64     `json:"lastPrice,omitempty"`
	OwnerEmail    string       `json:"userEmail"`
	LastCheckedAt *time.Time   `json:"lastChecked,omitempty"`
	PriceHistory  []PricePoint `json:"priceHistory"`
}

// ProductUpdate is a partial update. Nil fields are inherited from the stored
// record; History entries are appended to the ledger rather than replacing it.
type ProductUpdate struct {
	URL         *string
	Title       *string
	TargetPrice *float64
	OwnerEmail  *string
	History     []PricePoint

	// DefaultTitle is applied only when the record has no title yet
	DefaultTitle *string
}

// Clone returns a deep copy so callers never share ledger storage with a store
func (p *TrackedProduct) Clone() *TrackedProduct {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastPrice != nil {
		v := *p.LastPrice
		c.LastPrice = &v
	}
	if p.LastCheckedAt != nil {
		v := *p.LastCheckedAt
		c.LastCheckedAt = &v
	}
	c.PriceHistory = append([]PricePoint(nil), p.PriceHistory...)
	if c.PriceHistory == nil {
		c.PriceHistory = []PricePoint{}
	}
	return &c
}

// RecordPrice appends an observation to the ledger, evicting the oldest
// samples beyond limit, and keeps LastPrice/LastCheckedAt in step with it.
func (p *TrackedProduct) RecordPrice(price float64, at time.Time, limit int) {
	p.appendHistory([]PricePoint{{Price: price, Date: at}}, limit)
	p.LastCheckedAt = &at
}

func (p *TrackedProduct) appendHistory(points []PricePoint, limit int) {
	if len(points) == 0 {
		return
	}
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	history := append(p.PriceHistory, points...)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	p.PriceHistory = append([]PricePoint(nil), history...)

	last := p.PriceHistory[len(p.PriceHistory)-1].Price
	p.LastPrice = &last
}

// apply merges a partial update into p
func (p *TrackedProduct) apply(u ProductUpdate, limit int) {
	if u.URL != nil {
		p.URL = *u.URL
	}
	if u.Title != nil {
		p.Title = *u.Title
	} else if u.DefaultTitle != nil && p.Title == "" {
		p.Title = *u.DefaultTitle
	}
	if u.TargetPrice != nil {
		p.TargetPrice = *u.TargetPrice
	}
	if u.OwnerEmail != nil {
		p.OwnerEmail = *u.OwnerEmail
	}
	p.appendHistory(u.History, limit)
	if p.PriceHistory == nil {
		p.PriceHistory = []PricePoint{}
	}
}
