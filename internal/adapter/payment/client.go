package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	defaultRetryAfter  = 5 * time.Second
	defaultHTTPTimeout = 30 * time.Second
)

// Payment statuses reported by the rail.
const (
	statusConfirmed = "CONFIRMED"
	statusPending   = "PENDING"
	statusFailed    = "FAILED"
)

// ErrPaymentPending indicates the rail knows the payment but has not confirmed it yet.
var ErrPaymentPending = errors.New("payment pending on rail")

// TooManyRequestsError represents rate limiting signal from the payment rail.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// HTTPClient talks to the payment rail over its HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

type sendRequest struct {
	Reference string          `json:"reference"`
	ToAddress string          `json:"to_address"`
	Amount    decimal.Decimal `json:"amount"`
}

// response mirrors JSON payload from the payment rail.
type response struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	TxHash    string `json:"tx_hash"`
	Error     string `json:"error,omitempty"`
}

// NewHTTPClient creates payment rail client with default timeout.
func NewHTTPClient(baseURL string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse payment gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("payment gateway url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}, nil
}

// SendPayment asks the rail to transfer the amount. The reference doubles as
// the idempotency key, so resending or looking up the same reference never
// pays twice. Only a 4xx answer other than 429 is reported as
// errors.ErrPaymentRejected; every other failure leaves the outcome unknown.
func (c *HTTPClient) SendPayment(ctx context.Context, order model.PaymentOrder) (*model.PaymentReceipt, error) {
	body, err := json.Marshal(sendRequest{Reference: order.Reference, ToAddress: order.ToAddress, Amount: order.Amount})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(idempotencyHeader, order.Reference)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		data, err := decode(resp.Body)
		if err != nil {
			return nil, err
		}
		if data.TxHash == "" {
			return nil, fmt.Errorf("payment %s confirmed without tx hash", order.Reference)
		}
		return &model.PaymentReceipt{Reference: order.Reference, TxHash: data.TxHash}, nil
	case http.StatusTooManyRequests:
		return nil, TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		err := c.failure("send", resp)
		if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s", domainErrors.ErrPaymentRejected, err)
		}
		return nil, err
	}
}

// LookupPayment reports a previously sent payment by reference.
func (c *HTTPClient) LookupPayment(ctx context.Context, reference string) (*model.PaymentReceipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(reference), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := decode(resp.Body)
		if err != nil {
			return nil, err
		}
		switch data.Status {
		case statusConfirmed:
			if data.TxHash == "" {
				return nil, fmt.Errorf("payment %s confirmed without tx hash", reference)
			}
			return &model.PaymentReceipt{Reference: reference, TxHash: data.TxHash}, nil
		case statusPending:
			return nil, ErrPaymentPending
		case statusFailed:
			// Nothing left the wallet, same outcome as an unknown reference.
			return nil, fmt.Errorf("%w: rail reported failure: %s", domainErrors.ErrPaymentNotFound, data.Error)
		default:
			return nil, fmt.Errorf("unexpected payment status %q", data.Status)
		}
	case http.StatusNotFound:
		return nil, domainErrors.ErrPaymentNotFound
	case http.StatusTooManyRequests:
		return nil, TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return nil, c.failure("lookup", resp)
	}
}

func (c *HTTPClient) endpoint(parts ...string) string {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(append([]string{endpoint.Path, "/api/payments"}, parts...)...)
	return endpoint.String()
}

func (c *HTTPClient) failure(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	c.logger.Error("payment rail request failed",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)),
	)
	return fmt.Errorf("payment rail error: %s", resp.Status)
}

func decode(r io.Reader) (*response, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return defaultRetryAfter
}
