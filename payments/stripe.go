// Package payments talks to the card payment gateway and verifies its webhook callbacks.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type IntentRequest struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

// Gateway creates payment intents on the remote payment provider.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error)
}

// MinorUnits converts a 2dp amount into the gateway's integer minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type StripeClient struct {
	client *resty.Client
	logger *logrus.Logger
}

func NewStripeClient(baseURL, secretKey string, logger *logrus.Logger) *StripeClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetBasicAuth(secretKey, "").
		SetHeader("Accept", "application/json")

	return &StripeClient{client: client, logger: logger}
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error) {
	form := map[string]string{
		"amount":   strconv.FormatInt(req.Amount, 10),
		"currency": req.Currency,
	}
	for k, v := range req.Metadata {
		form["metadata["+k+"]"] = v
	}

	r := c.client.R().
		SetContext(ctx).
		SetFormData(form)
	if req.IdempotencyKey != "" {
		r.SetHeader("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := r.Post("/v1/payment_intents")
	if err != nil {
		return nil, fmt.Errorf("payment intent request failed: %w", err)
	}

	if resp.IsError() {
		var apiErr stripeError
		_ = json.Unmarshal(resp.Body(), &apiErr)
		c.logger.WithFields(logrus.Fields{
			"status":     resp.StatusCode(),
			"error_type": apiErr.Error.Type,
			"error_code": apiErr.Error.Code,
		}).Error("Payment gateway rejected payment intent")
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}

	var intent PaymentIntent
	if err := json.Unmarshal(resp.Body(), &intent); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent response: %w", err)
	}
	if intent.ClientSecret == "" {
		return nil, fmt.Errorf("client secret not found in payment intent %s", intent.ID)
	}

	return &intent, nil
}
