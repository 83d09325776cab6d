package mev

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

// Bundle status values reported by the relay.
type BundleStatus string

const (
	BundlePending BundleStatus = "pending"
	BundleLanded  BundleStatus = "landed"
	BundleFailed  BundleStatus = "failed"
)

// Status polling bounds: 30 attempts, 500ms apart.
const (
	defaultPollAttempts = 30
	defaultPollInterval = 500 * time.Millisecond
)

// tipAccounts are the relay's published tip destinations. The tip transfer in
// a bundle must pay one of them; a random pick spreads load.
var tipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// RandomTipAccount returns one of the relay tip accounts.
func RandomTipAccount() string {
	return tipAccounts[rand.Intn(len(tipAccounts))]
}

// RelayClient submits transaction bundles to an external block-engine relay
// and polls for inclusion. The relay itself is outside this core; the client
// only speaks its HTTP API.
type RelayClient struct {
	baseURL      string
	client       *http.Client
	pollAttempts int
	pollInterval time.Duration
	logger       *zap.Logger
}

// RelayOption configures a RelayClient.
type RelayOption func(*RelayClient)

// WithRelayTimeout sets the HTTP timeout for relay calls.
func WithRelayTimeout(d time.Duration) RelayOption {
	return func(c *RelayClient) { c.client.Timeout = d }
}

// WithPolling overrides the status-polling bounds.
func WithPolling(attempts int, interval time.Duration) RelayOption {
	return func(c *RelayClient) {
		c.pollAttempts = attempts
		c.pollInterval = interval
	}
}

// WithRelayLogger attaches a logger.
func WithRelayLogger(logger *zap.Logger) RelayOption {
	return func(c *RelayClient) { c.logger = logger }
}

// NewRelayClient creates a relay client for the given block-engine base URL.
func NewRelayClient(baseURL string, opts ...RelayOption) *RelayClient {
	c := &RelayClient{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollAttempts: defaultPollAttempts,
		pollInterval: defaultPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// bundleRequest is the relay submission payload: base58-encoded serialized
// transactions in execution order (tip first, then the trade).
type bundleRequest struct {
	Transactions []string `json:"transactions"`
}

type bundleResponse struct {
	BundleID string `json:"bundleId"`
	Error    string `json:"error,omitempty"`
}

type bundleStatusResponse struct {
	Status BundleStatus `json:"status"`
}

// SubmitBundle posts the serialized, pre-signed transactions as an ordered
// bundle and returns the relay's bundle identifier.
func (c *RelayClient) SubmitBundle(ctx context.Context, serializedTxs [][]byte) (string, error) {
	req := bundleRequest{Transactions: make([]string, 0, len(serializedTxs))}
	for _, tx := range serializedTxs {
		req.Transactions = append(req.Transactions, base58.Encode(tx))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "marshal bundle")
	}

	url := c.baseURL + "/api/v1/bundles"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "create bundle request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "send bundle")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "read relay response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewError(domain.CodeRelayError,
			"bundle submission failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result bundleResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "parse relay response")
	}
	if result.BundleID == "" {
		return "", domain.NewError(domain.CodeRelayError, "relay rejected bundle: %s", result.Error)
	}

	c.logger.Info("bundle submitted",
		zap.String("bundle_id", result.BundleID),
		zap.Int("transactions", len(req.Transactions)))
	return result.BundleID, nil
}

// WaitForBundle polls the relay status endpoint until the bundle lands or
// fails. Exceeding the attempt ceiling is a timeout failure, distinct from a
// relay error, so callers can tell "never landed" from "relay unreachable".
func (c *RelayClient) WaitForBundle(ctx context.Context, bundleID string) error {
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		status, err := c.queryStatus(ctx, bundleID)
		if err != nil {
			return err
		}

		switch status {
		case BundleLanded:
			c.logger.Info("bundle landed", zap.String("bundle_id", bundleID))
			return nil
		case BundleFailed:
			return domain.NewError(domain.CodeRelayError, "bundle %s failed", bundleID)
		}

		c.logger.Debug("bundle pending",
			zap.String("bundle_id", bundleID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.pollAttempts))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return domain.NewError(domain.CodeBundleTimeout,
		"bundle %s not confirmed after %d attempts", bundleID, c.pollAttempts)
}

// queryStatus fetches the bundle status. A non-2xx status response is treated
// as still pending rather than an error.
func (c *RelayClient) queryStatus(ctx context.Context, bundleID string) (BundleStatus, error) {
	url := fmt.Sprintf("%s/api/v1/bundles/status/%s", c.baseURL, bundleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "create status request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "query bundle status")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BundlePending, nil
	}

	var status bundleStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", domain.WrapError(domain.CodeRelayError, err, "parse status response")
	}
	return status.Status, nil
}

// BundleStats summarizes recently landed bundles as reported by the relay.
type BundleStats struct {
	TotalBundles      uint64 `json:"total_bundles"`
	SuccessfulBundles uint64 `json:"successful_bundles"`
	FailedBundles     uint64 `json:"failed_bundles"`
	AvgTipLamports    uint64 `json:"avg_tip_lamports"`
	MedianTipLamports uint64 `json:"median_tip_lamports"`
}

// RecentStats fetches relay bundle statistics. An unavailable endpoint yields
// conservative defaults rather than an error.
func (c *RelayClient) RecentStats(ctx context.Context) (BundleStats, error) {
	defaults := BundleStats{AvgTipLamports: 1_000_000, MedianTipLamports: 1_000_000}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/bundles/stats", nil)
	if err != nil {
		return defaults, domain.WrapError(domain.CodeRelayError, err, "create stats request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return defaults, domain.WrapError(domain.CodeRelayError, err, "query bundle stats")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return defaults, nil
	}

	var stats BundleStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return defaults, domain.WrapError(domain.CodeRelayError, err, "parse stats response")
	}
	return stats, nil
}
