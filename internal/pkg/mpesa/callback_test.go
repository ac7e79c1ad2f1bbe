package mpesa

import (
	"errors"
	"testing"
	"time"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1500.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

const failedCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user."
    }
  }
}`

func TestParseCallbackSuccess(t *testing.T) {
	res, err := ParseCallback([]byte(successCallback))
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}

	if res.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Fatalf("CheckoutRequestID = %q", res.CheckoutRequestID)
	}
	if res.ResultCode != 0 {
		t.Fatalf("ResultCode = %d, want 0", res.ResultCode)
	}
	if res.ReceiptNumber != "NLJ7RT61SV" {
		t.Fatalf("ReceiptNumber = %q", res.ReceiptNumber)
	}
	if res.Amount != 1500 {
		t.Fatalf("Amount = %d, want 1500", res.Amount)
	}
	if res.PhoneNumber != "254708374149" {
		t.Fatalf("PhoneNumber = %q", res.PhoneNumber)
	}

	// 2019-12-19 10:21:15 Nairobi is 07:21:15 UTC.
	want := time.Date(2019, 12, 19, 7, 21, 15, 0, time.UTC)
	if res.TransactionDate == nil || !res.TransactionDate.Equal(want) {
		t.Fatalf("TransactionDate = %v, want %v", res.TransactionDate, want)
	}
}

func TestParseCallbackFailure(t *testing.T) {
	res, err := ParseCallback([]byte(failedCallback))
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if res.ResultCode != 1032 {
		t.Fatalf("ResultCode = %d, want 1032", res.ResultCode)
	}
	if res.ReceiptNumber != "" {
		t.Fatalf("ReceiptNumber = %q, want empty", res.ReceiptNumber)
	}
	if res.TransactionDate != nil {
		t.Fatalf("TransactionDate = %v, want nil", res.TransactionDate)
	}
}

func TestParseCallbackStringMetadataValues(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"Amount","Value":"250"},{"Name":"PhoneNumber","Value":"254712345678"},{"Name":"MpesaReceiptNumber","Value":"ABC123"}]}}}}`

	res, err := ParseCallback([]byte(payload))
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if res.Amount != 250 {
		t.Fatalf("Amount = %d, want 250", res.Amount)
	}
	if res.PhoneNumber != "254712345678" {
		t.Fatalf("PhoneNumber = %q", res.PhoneNumber)
	}
}

func TestParseCallbackMalformed(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{}`,
		`{"Body":{"stkCallback":{"ResultCode":0}}}`, // no CheckoutRequestID
	} {
		if _, err := ParseCallback([]byte(payload)); !errors.Is(err, ErrCallbackMalformed) {
			t.Fatalf("ParseCallback(%q) = %v, want ErrCallbackMalformed", payload, err)
		}
	}
}
