package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

const (
	// Daraja caps on the free-text STK push fields.
	maxDescriptionLen = 12
	maxAccountRefLen  = 13

	MinAmount = 1
	MaxAmount = 150000
)

// Client speaks the Daraja STK endpoints. Token acquisition lives in
// TokenCache; callers pass the bearer token in.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// StkPushRequest is the Daraja processrequest body.
type StkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// StkPushResponse is the synchronous acceptance/rejection of an STK push.
// ResponseCode "0" means the prompt was queued to the handset; anything else
// is a rejection with a customer-facing description.
type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	// Error shape used for non-2xx responses (bad credentials, rate limits).
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Accepted reports whether the provider queued the prompt.
func (r *StkPushResponse) Accepted() bool {
	return r.ResponseCode == "0"
}

// Description picks the most specific customer-facing rejection text.
func (r *StkPushResponse) Description() string {
	if r.ResponseDescription != "" {
		return r.ResponseDescription
	}
	return r.ErrorMessage
}

// StkPush initiates a customer-paybill prompt. The decoded body is returned
// even when the provider rejects the request; only transport-level failures
// become ErrProviderUnavailable.
func (c *Client) StkPush(ctx context.Context, token string, amount int, msisdn, accountRef, description, timestamp, password string) (*StkPushResponse, error) {
	body := StkPushRequest{
		BusinessShortCode: c.cfg.BusinessShortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            msisdn,
		PartyB:            c.cfg.BusinessShortcode,
		PhoneNumber:       msisdn,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(accountRef, maxAccountRefLen),
		TransactionDesc:   truncate(description, maxDescriptionLen),
	}

	var out StkPushResponse
	if err := c.postJSON(ctx, c.cfg.StkPushURL, token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`

	// Error shape returned while the prompt is still outstanding.
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// QueryResult is the provider's verdict on an outstanding checkout request.
// Codes are surfaced verbatim (0 success, 1032 cancelled by user, 1037
// timeout, ...); interpretation lives in the service layer.
type QueryResult struct {
	ResultCode int
	ResultDesc string
}

// ErrResultPending marks a query answered with "transaction is being
// processed"; the caller should leave local state untouched and retry later.
var ErrResultPending = fmt.Errorf("stk result not yet available")

// StkQuery asks for the current status of a checkout request.
func (c *Client) StkQuery(ctx context.Context, token, checkoutRequestID, timestamp, password string) (*QueryResult, error) {
	body := stkQueryRequest{
		BusinessShortCode: c.cfg.BusinessShortcode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var out stkQueryResponse
	if err := c.postJSON(ctx, c.cfg.QueryURL, token, body, &out); err != nil {
		return nil, err
	}

	if out.ErrorCode != "" {
		// 500.001.1001: the prompt is still on the handset.
		return nil, fmt.Errorf("%w: %s %s", ErrResultPending, out.ErrorCode, out.ErrorMessage)
	}

	code, err := strconv.Atoi(out.ResultCode)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable ResultCode %q", ErrProviderUnavailable, out.ResultCode)
	}
	return &QueryResult{ResultCode: code, ResultDesc: out.ResultDesc}, nil
}

func (c *Client) postJSON(ctx context.Context, url, token string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: status=%d body=%s", ErrProviderUnavailable, resp.StatusCode, string(body))
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
