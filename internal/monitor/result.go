package monitor

import "encoding/json"

// Result messages
const (
	MessageDropNotified   = "Price drop detected! Email sent."
	MessageDropNotSent    = "Price drop detected! Email could not be sent."
	MessageNoDrop         = "No price drop detected"
	MessageCheckCancelled = "check cancelled before it started"
)

// CheckResult is the outcome of one fetch-decide-notify cycle
type CheckResult struct {
	ProductID         string
	Success           bool
	PriceDrop         bool
	ShouldNotify      bool
	CurrentPrice      float64
	PreviousPrice     float64
	DropPercentage    int
	Message           string
	Error             string
	NotificationError string
}

type successJSON struct {
	ProductID         string  `json:"productId,omitempty"`
	Success           bool    `json:"success"`
	PriceDrop         bool    `json:"priceDrop"`
	ShouldNotify      bool    `json:"shouldNotify"`
	CurrentPrice      float64 `json:"currentPrice"`
	PreviousPrice     float64 `json:"previousPrice"`
	DropPercentage    *int    `json:"dropPercentage,omitempty"`
	Message           string  `json:"message"`
	NotificationError string  `json:"notificationError,omitempty"`
}

type failureJSON struct {
	ProductID string `json:"productId,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
}

// MarshalJSON emits the success shape or the {success:false, error} shape.
// dropPercentage is only present when a notification was warranted.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureJSON{
			ProductID: r.ProductID,
			Success:   false,
			Error:     r.Error,
		})
	}

	out := successJSON{
		ProductID:         r.ProductID,
		Success:           true,
		PriceDrop:         r.PriceDrop,
		ShouldNotify:      r.ShouldNotify,
		CurrentPrice:      r.CurrentPrice,
		PreviousPrice:     r.PreviousPrice,
		Message:           r.Message,
		NotificationError: r.NotificationError,
	}
	if r.ShouldNotify {
		pct := r.DropPercentage
		out.DropPercentage = &pct
	}
	return json.Marshal(out)
}

func failure(productID, msg string) CheckResult {
	return CheckResult{ProductID: productID, Success: false, Error: msg}
}

// BulkResult is the outcome of a bulk re-check
type BulkResult struct {
	Results      []CheckResult `json:"results"`
	TotalChecked int           `json:"totalChecked"`
}
