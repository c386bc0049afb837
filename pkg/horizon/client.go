/**
 * @description
 * This package provides a client for the Horizon API, Stellar's ledger query
 * service. It encapsulates the logic for fetching transactions by hash,
 * following a transaction's embedded operations link, and paging an account's
 * recent transactions.
 *
 * @dependencies
 * - context, encoding/json, fmt, io, log, net/http, strings, time: Standard Go libraries.
 *
 * @notes
 * - Horizon's read endpoints are public; no API key is attached.
 * - Resource links in Horizon responses are RFC 6570 templated
 *   (e.g. ".../operations{?cursor,limit,order}"); the template suffix must be
 *   stripped before the link can be fetched.
 */
package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the Horizon API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Horizon API client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Transaction represents a transaction record as returned by Horizon.
type Transaction struct {
	ID         string `json:"id"`
	Hash       string `json:"hash"`
	Successful bool   `json:"successful"`
	Ledger     int64  `json:"ledger"`
	Memo       string `json:"memo"`
	MemoType   string `json:"memo_type"` // e.g., 'none', 'text', 'id', 'hash'
	CreatedAt  string `json:"created_at"`
	Links      struct {
		Operations struct {
			Href      string `json:"href"`
			Templated bool   `json:"templated"`
		} `json:"operations"`
	} `json:"_links"`
}

// HasTextMemo reports whether the transaction carries a non-empty text memo.
func (t *Transaction) HasTextMemo() bool {
	return t.MemoType == "text" && t.Memo != ""
}

// Operation represents a single operation record within a transaction.
// Horizon reports regular payments under `to`/`amount` and account-creating
// payments under `account`/`starting_balance`.
type Operation struct {
	ID              string `json:"id"`
	Type            string `json:"type"` // e.g., 'payment', 'create_account', 'manage_offer'
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          string `json:"amount"`
	AssetType       string `json:"asset_type"` // e.g., 'native', 'credit_alphanum4'
	AssetCode       string `json:"asset_code"`
	Account         string `json:"account"`
	StartingBalance string `json:"starting_balance"`
}

// IsPayment reports whether the operation moves funds to a destination
// account. A create_account operation is an implicit native payment that
// funds a previously unused address.
func (o *Operation) IsPayment() bool {
	return o.Type == "payment" || o.Type == "create_account"
}

// Destination returns the account the operation pays into.
func (o *Operation) Destination() string {
	if o.Type == "create_account" {
		return o.Account
	}
	return o.To
}

// PaymentAmount returns the paid amount as Horizon's decimal string.
func (o *Operation) PaymentAmount() string {
	if o.Type == "create_account" {
		return o.StartingBalance
	}
	return o.Amount
}

// IsNativeAsset reports whether the operation moves the network's native asset.
func (o *Operation) IsNativeAsset() bool {
	return o.Type == "create_account" || o.AssetType == "native"
}

// ErrorResponse represents a problem+json error from the Horizon API.
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (e *ErrorResponse) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("horizon api error: %s (status %d)", e.Title, e.Status)
	}
	return "unknown horizon api error"
}

type operationsPage struct {
	Embedded struct {
		Records []Operation `json:"records"`
	} `json:"_embedded"`
}

type transactionsPage struct {
	Embedded struct {
		Records []Transaction `json:"records"`
	} `json:"_embedded"`
}

// Transaction fetches a single transaction record by its hash.
func (c *Client) Transaction(ctx context.Context, hash string) (*Transaction, error) {
	url := c.BaseURL + "/transactions/" + hash

	body, err := c.get(ctx, url, "get_transaction")
	if err != nil {
		return nil, err
	}

	var tx Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction response: %w", err)
	}
	return &tx, nil
}

// OperationsByLink follows a transaction record's operations link and returns
// the operation records on the page. The link's `{?cursor,limit,order}`
// template suffix is stripped before fetching.
func (c *Client) OperationsByLink(ctx context.Context, link string) ([]Operation, error) {
	body, err := c.get(ctx, StripLinkTemplate(link), "get_operations")
	if err != nil {
		return nil, err
	}

	var page operationsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode operations response: %w", err)
	}
	return page.Embedded.Records, nil
}

// AccountTransactions fetches an account's most recent transactions, newest first.
func (c *Client) AccountTransactions(ctx context.Context, address string, limit int) ([]Transaction, error) {
	url := fmt.Sprintf("%s/accounts/%s/transactions?order=desc&limit=%d", c.BaseURL, address, limit)

	body, err := c.get(ctx, url, "get_account_transactions")
	if err != nil {
		return nil, err
	}

	var page transactionsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode account transactions response: %w", err)
	}
	return page.Embedded.Records, nil
}

// get executes a GET request and returns the raw body for 2xx responses.
func (c *Client) get(ctx context.Context, url, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=horizon_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=horizon_client op=%s status=%d title=%q", op, resp.StatusCode, errResp.Title)
		return nil, &errResp
	}

	return bodyBytes, nil
}

// StripLinkTemplate removes an RFC 6570 query template from a Horizon link.
func StripLinkTemplate(link string) string {
	if idx := strings.Index(link, "{"); idx >= 0 {
		return link[:idx]
	}
	return link
}
