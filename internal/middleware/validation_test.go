package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"
)

type createPayload struct {
	SKU  string `json:"sku" validate:"required"`
	Name string `json:"name" validate:"required,max=255"`
}

func TestValidateRequest(t *testing.T) {
	if err := ValidateRequest(&createPayload{SKU: "PIZZA-001", Name: "Margherita"}); err != nil {
		t.Errorf("valid payload should pass: %v", err)
	}

	err := ValidateRequest(&createPayload{Name: "Margherita"})
	if err == nil {
		t.Fatal("missing sku should fail validation")
	}

	details := FormatValidationErrors(err)
	if len(details) != 1 {
		t.Fatalf("expected one validation error, got %d", len(details))
	}
	if details[0].Field != "SKU" {
		t.Errorf("unexpected field %s", details[0].Field)
	}
	if details[0].Message != "This field is required" {
		t.Errorf("unexpected message %s", details[0].Message)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"sku":"PIZZA-001","name":"Margherita"}`))
	var payload createPayload
	if err := DecodeAndValidate(req, &payload); err != nil {
		t.Errorf("valid body should decode: %v", err)
	}
	if payload.SKU != "PIZZA-001" {
		t.Errorf("payload not decoded, got %+v", payload)
	}

	req = httptest.NewRequest("POST", "/", bytes.NewBufferString(`not json`))
	if err := DecodeAndValidate(req, &payload); err == nil {
		t.Error("malformed JSON should fail")
	}

	req = httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"name":"Margherita"}`))
	if err := DecodeAndValidate(req, &createPayload{}); err == nil {
		t.Error("missing required field should fail")
	}
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	details := FormatValidationErrors(bytes.ErrTooLarge)
	if len(details) != 0 {
		t.Errorf("non-validator errors produce no details, got %+v", details)
	}
}
