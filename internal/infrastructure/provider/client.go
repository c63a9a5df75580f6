// Package provider implements the HTTP client for the external payment
// provider behind the ProviderGateway port.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/config"
)

type HTTPProviderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewProviderClient(cfg config.ProviderConfig) application.ProviderGateway {
	return &HTTPProviderClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *HTTPProviderClient) Authorize(ctx context.Context, req application.ProviderAuthorizationRequest, idempotencyKey string) (*application.ProviderAuthorizationResponse, error) {
	url := fmt.Sprintf("%s/api/v1/charges", c.baseURL)
	return sendRequest[application.ProviderAuthorizationRequest, application.ProviderAuthorizationResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPProviderClient) Capture(ctx context.Context, req application.ProviderCaptureRequest, idempotencyKey string) (*application.ProviderCaptureResponse, error) {
	url := fmt.Sprintf("%s/api/v1/charges/%s/capture", c.baseURL, req.ExternalRef)
	return sendRequest[application.ProviderCaptureRequest, application.ProviderCaptureResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPProviderClient) Cancel(ctx context.Context, req application.ProviderCancelRequest, idempotencyKey string) (*application.ProviderCancelResponse, error) {
	url := fmt.Sprintf("%s/api/v1/charges/%s/cancel", c.baseURL, req.ExternalRef)
	return sendRequest[application.ProviderCancelRequest, application.ProviderCancelResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPProviderClient) Refund(ctx context.Context, req application.ProviderRefundRequest, idempotencyKey string) (*application.ProviderRefundResponse, error) {
	url := fmt.Sprintf("%s/api/v1/charges/%s/refunds", c.baseURL, req.ExternalRef)
	return sendRequest[application.ProviderRefundRequest, application.ProviderRefundResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPProviderClient) GetCharge(ctx context.Context, externalRef string) (*application.ProviderChargeStatus, error) {
	url := fmt.Sprintf("%s/api/v1/charges/%s", c.baseURL, externalRef)
	return sendRequest[any, application.ProviderChargeStatus](c, ctx, http.MethodGet, url, nil, "")
}

type providerErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

func sendRequest[Req any, Resp any](c *HTTPProviderClient, ctx context.Context, method, url string, reqBody *Req, idempotencyKey string) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp providerErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &application.ProviderError{
			Code:       errResp.Err,
			Message:    errResp.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var providerResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&providerResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &providerResp, nil
}
