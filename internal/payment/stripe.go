package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// Client creates Stripe checkout sessions over the REST API.  Each attempt
// is bounded by Timeout; network errors, 429 and 5xx are retried with
// exponential backoff, other 4xx responses fail at once.
type Client struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	MaxTries  uint
	HTTP      *http.Client
	Log       logrus.FieldLogger

	// initialInterval is the first retry delay; tests shorten it.
	initialInterval time.Duration
}

// NewClient returns a client for baseURL (e.g. https://api.stripe.com).
func NewClient(baseURL, secretKey string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		SecretKey:       secretKey,
		Timeout:         timeout,
		MaxTries:        3,
		HTTP:            &http.Client{},
		Log:             log,
		initialInterval: 200 * time.Millisecond,
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CreateCheckout posts a checkout session with a single line item.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.Reference)
	if req.Email != "" {
		form.Set("customer_email", req.Email)
	}
	form.Set("metadata[user_id]", strconv.FormatUint(req.UserID, 10))
	form.Set("metadata[tokens]", strconv.Itoa(req.Tokens))
	form.Set("metadata[reference]", req.Reference)
	form.Set("line_items[0][quantity]", strconv.Itoa(req.Tokens))
	form.Set("line_items[0][price_data][currency]", req.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.UnitAmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Class token")
	body := form.Encode()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialInterval
	eb.MaxInterval = 2 * time.Second

	attempt := 0
	op := func() (CheckoutSession, error) {
		attempt++
		s, err := c.post(ctx, "/v1/checkout/sessions", body, req.Reference)
		if err != nil && c.Log != nil {
			c.Log.WithError(err).WithField("attempt", attempt).Warn("create checkout failed")
		}
		return s, err
	}
	s, err := backoff.Retry(ctx, op, backoff.WithBackOff(eb), backoff.WithMaxTries(c.MaxTries))
	if err != nil {
		var perm *providerError
		if errors.As(err, &perm) {
			return CheckoutSession{}, err
		}
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, nil
}

// providerError is a non-retryable rejection by the provider.
type providerError struct {
	Status  int
	Message string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("payment provider rejected request (%d): %s", e.Status, e.Message)
}

func (c *Client) post(ctx context.Context, path, body, idemKey string) (CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(body))
	if err != nil {
		return CheckoutSession{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.SecretKey, "")
	// The same key on every attempt lets the provider drop duplicates.
	req.Header.Set("Idempotency-Key", idemKey)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return CheckoutSession{}, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return CheckoutSession{}, err
	}
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return CheckoutSession{}, fmt.Errorf("provider status %d", res.StatusCode)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		msg := ae.Error.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return CheckoutSession{}, backoff.Permanent(&providerError{Status: res.StatusCode, Message: msg})
	}
	var s CheckoutSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return CheckoutSession{}, backoff.Permanent(fmt.Errorf("decode checkout session: %w", err))
	}
	if s.ID == "" || s.URL == "" {
		return CheckoutSession{}, backoff.Permanent(errors.New("checkout session without id or url"))
	}
	return s, nil
}
