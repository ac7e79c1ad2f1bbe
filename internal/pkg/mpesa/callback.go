package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CallbackEnvelope is the asynchronous result Daraja posts to the callback
// URL once the subscriber completes or abandons the handset prompt.
type CallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        int             `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []metadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type metadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// CallbackResult is the flattened, typed view of a callback the store acts on.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	ReceiptNumber   string
	Amount          int
	PhoneNumber     string
	TransactionDate *time.Time
}

// ParseCallback decodes the provider envelope. A payload without a
// CheckoutRequestID is the one case the handler answers with a non-zero
// envelope so the provider retries.
func ParseCallback(payload []byte) (*CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var env CallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCallbackMalformed, err)
	}

	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrCallbackMalformed)
	}

	out := &CallbackResult{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			out.ReceiptNumber = itemString(item.Value)
		case "PhoneNumber":
			out.PhoneNumber = itemString(item.Value)
		case "Amount":
			if n, ok := itemInt(item.Value); ok {
				out.Amount = n
			}
		case "TransactionDate":
			if ts := parseTransactionDate(itemString(item.Value)); ts != nil {
				out.TransactionDate = ts
			}
		}
	}

	return out, nil
}

// Metadata values arrive as strings or JSON numbers depending on field and
// provider mood; both are tolerated.
func itemString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func itemInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
		if f, err := val.Float64(); err == nil {
			return int(f), true
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// parseTransactionDate reads the provider's 14-digit Nairobi-local timestamp.
func parseTransactionDate(raw string) *time.Time {
	if len(raw) != 14 {
		return nil
	}
	ts, err := time.ParseInLocation("20060102150405", raw, nairobi)
	if err != nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}
