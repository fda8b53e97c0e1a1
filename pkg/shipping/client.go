package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/vendio-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

const (
	defaultBaseURL              = "https://panel.sendcloud.sc/api/v2"
	requestBodyReadLimit  int64 = 1024
)

var errAPIKeyRequired = errors.New("carrier api key is required")

// Client wraps the carrier integration used to purchase shipping labels.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	defaultCarrier string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured carrier base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the carrier client from configuration.
func NewClient(cfg config.CarrierConfig, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(cfg.APIKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		apiKey:         trimmedKey,
		baseURL:        defaultBaseURL,
		defaultCarrier: cfg.DefaultCarrier,
		httpClient:     &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		client.baseURL = strings.TrimSpace(cfg.BaseURL)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// LabelRequest describes the parcel sent to the carrier.
type LabelRequest struct {
	OrderRef    string         `json:"order_ref"`
	FromAddress *types.Address `json:"from_address"`
	ToAddress   *types.Address `json:"to_address"`
	WeightGrams int            `json:"weight_grams"`
	LengthCm    int            `json:"length_cm"`
	WidthCm     int            `json:"width_cm"`
	HeightCm    int            `json:"height_cm"`
	Carrier     string         `json:"carrier,omitempty"`
}

// Label holds the carrier response for a purchased label.
type Label struct {
	LabelID        string
	TrackingNumber string
	Carrier        string
	PriceCents     int64
	PDFURL         string
}

// CreateLabel purchases a label for the given parcel.
func (c *Client) CreateLabel(ctx context.Context, req LabelRequest) (*Label, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if !req.FromAddress.PostalComplete() || !req.ToAddress.PostalComplete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "both addresses need postal code and country")
	}
	if req.Carrier == "" {
		req.Carrier = c.defaultCarrier
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal label request")
	}

	url := strings.TrimRight(c.baseURL, "/") + "/labels"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build label request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute label request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"label request failed",
		)
	}

	var apiResp struct {
		Label struct {
			ID             string `json:"id"`
			TrackingNumber string `json:"tracking_number"`
			Carrier        string `json:"carrier"`
			PriceCents     int64  `json:"price_cents"`
			PDFURL         string `json:"pdf_url"`
		} `json:"label"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode label response")
	}

	return &Label{
		LabelID:        apiResp.Label.ID,
		TrackingNumber: apiResp.Label.TrackingNumber,
		Carrier:        apiResp.Label.Carrier,
		PriceCents:     apiResp.Label.PriceCents,
		PDFURL:         apiResp.Label.PDFURL,
	}, nil
}
