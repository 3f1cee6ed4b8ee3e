/**
 * @description
 * This package provides the HTTP client used to deliver the external leg of a
 * cross-bank transfer: the deposit call against a partner bank's API.
 *
 * Partner banks disagree on how a deposit is encoded, so the client keeps a
 * small closed set of payload builders keyed by the bank's configured transfer
 * method (query parameters, JSON body, or an endpoint discovered from the
 * partner's API schema) instead of branching inside the orchestrator.
 *
 * The call has a bounded timeout; a timeout is reported the same way as any
 * other transport failure so the orchestrator compensates identically.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http, net/url: Standard Go libraries.
 * - github.com/shopspring/decimal: Exact decimal amounts.
 * - internal/banks, internal/domain: Directory types and models.
 */
package partnerclient

import (
	"bytes"
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

	"github.com/shopspring/decimal"

	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/banks"
	"github.com/unk029-openconsultinguk/unk029-bank-app/internal/domain"
)

var (
	// ErrRemoteUnreachable marks transport-level failures: connection refused,
	// DNS errors, timeouts.
	ErrRemoteUnreachable = errors.New("partner bank unreachable")
	// ErrUnsupportedTransferMethod marks a directory entry whose transfer
	// method this client cannot encode.
	ErrUnsupportedTransferMethod = errors.New("unsupported transfer method")
)

// RemoteError is a non-2xx response from the partner bank. The body text is
// preserved so callers can surface the remote reason.
type RemoteError struct {
	BankCode   string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("partner bank %s rejected deposit (status %d): %s", e.BankCode, e.StatusCode, e.Body)
}

// DepositRequest describes one outbound deposit leg.
type DepositRequest struct {
	AccountNo     int64
	SortCode      string
	AccountHolder string
	Amount        decimal.Decimal
	Reference     string
}

// depositBody is the JSON payload shape shared by JSON-accepting partners.
type depositBody struct {
	AccountNumber int64           `json:"account_number"`
	SortCode      string          `json:"sort_code,omitempty"`
	AccountHolder string          `json:"account_holder,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference,omitempty"`
}

// Client delivers deposits to partner banks.
type Client struct {
	HTTPClient *http.Client
	Resolver   banks.EndpointResolver
}

// NewClient creates a partner bank client with a bounded per-call timeout.
// The resolver is consulted only for banks configured with the auto method.
func NewClient(timeout time.Duration, resolver banks.EndpointResolver) *Client {
	if resolver == nil {
		resolver = banks.NewStaticResolver()
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		Resolver:   resolver,
	}
}

// Deposit delivers funds to an account at a partner bank using the bank's
// configured transfer method. A nil return means the partner confirmed the
// deposit with a 2xx response.
func (c *Client) Deposit(ctx context.Context, bank domain.PartnerBank, req DepositRequest) error {
	switch bank.TransferMethod {
	case domain.MethodQueryParams:
		return c.depositQueryParams(ctx, bank, req)
	case domain.MethodDeposit:
		return c.depositJSON(ctx, bank, banks.DefaultDepositPath, http.MethodPost, req)
	case domain.MethodAuto:
		path, method := c.Resolver.ResolveDepositEndpoint(ctx, bank.URL)
		return c.depositJSON(ctx, bank, path, method, req)
	default:
		return fmt.Errorf("%w: %q (bank %s)", ErrUnsupportedTransferMethod, bank.TransferMethod, bank.Code)
	}
}

// depositQueryParams encodes the deposit as POST <base>/deposit/?account_number=..&amount=..
func (c *Client) depositQueryParams(ctx context.Context, bank domain.PartnerBank, req DepositRequest) error {
	params := url.Values{}
	params.Set("account_number", strconv.FormatInt(req.AccountNo, 10))
	params.Set("amount", req.Amount.String())
	endpoint := strings.TrimRight(bank.URL, "/") + "/deposit/?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(bank, httpReq)
}

// depositJSON encodes the deposit as a JSON body against the given endpoint.
func (c *Client) depositJSON(ctx context.Context, bank domain.PartnerBank, path, method string, req DepositRequest) error {
	body, err := json.Marshal(depositBody{
		AccountNumber: req.AccountNo,
		SortCode:      req.SortCode,
		AccountHolder: req.AccountHolder,
		Amount:        req.Amount,
		Reference:     req.Reference,
	})
	if err != nil {
		return fmt.Errorf("marshal deposit request: %w", err)
	}

	endpoint := strings.TrimRight(bank.URL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return c.do(bank, httpReq)
}

func (c *Client) do(bank domain.PartnerBank, req *http.Request) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep enough of the body to explain the rejection without logging
		// unbounded remote payloads.
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &RemoteError{
			BankCode:   bank.Code,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(bodyBytes)),
		}
	}
	return nil
}
