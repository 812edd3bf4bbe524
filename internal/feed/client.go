// Package feed fetches transactions from the Plaid bank-feed API.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	}
	switch c.Environment {
	case "sandbox", "production":
		return nil
	default:
		return fmt.Errorf("%w: plaid environment must be sandbox or production", common.ErrInvalidConfig)
	}
}

// AccountLookup maps Plaid account IDs to display names. It is built once
// per sync and passed through explicitly; nothing here caches accounts
// between syncs.
type AccountLookup map[string]string

// Name returns the display name for an account, falling back to the raw ID.
func (l AccountLookup) Name(accountID string) string {
	if name, ok := l[accountID]; ok && name != "" {
		return name
	}
	return accountID
}

// Client fetches transactions for a single Plaid item.
type Client struct {
	api         *plaid.APIClient
	logger      *slog.Logger
	accessToken string
	retryOpts   common.RetryOptions
}

// NewClient creates a Plaid client from validated configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	if cfg.Environment == "production" {
		configuration.UseEnvironment(plaid.Production)
	} else {
		configuration.UseEnvironment(plaid.Sandbox)
	}

	return &Client{
		api:         plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		logger:      slog.Default().With("component", "feed"),
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// FetchAccounts builds the account lookup for one sync operation.
func (c *Client) FetchAccounts(ctx context.Context) (AccountLookup, error) {
	var accounts []plaid.AccountBase

	err := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return wrapPlaidError(c.logger, err, "failed to fetch accounts")
		}
		accounts = resp.GetAccounts()
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	lookup := make(AccountLookup, len(accounts))
	for _, account := range accounts {
		lookup[account.GetAccountId()] = account.GetName()
	}

	c.logger.Info("Fetched accounts", "count", len(lookup))
	return lookup, nil
}

// FetchTransactions pages through /transactions/get for the date range and
// converts the results, resolving account names through the lookup.
func (c *Client) FetchTransactions(ctx context.Context, userID string, lookup AccountLookup, startDate, endDate time.Time) ([]model.Transaction, error) {
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must not be after end date")
	}

	const pageSize = int32(500) // Plaid's max page size

	var all []plaid.Transaction
	offset := int32(0)

	for {
		var page []plaid.Transaction

		err := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format("2006-01-02"),
				endDate.Format("2006-01-02"),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return wrapPlaidError(c.logger, err, "failed to fetch transactions")
			}
			page = resp.GetTransactions()
			return nil
		}, c.retryOpts)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	c.logger.Info("Fetched transactions", "count", len(all))

	transactions := make([]model.Transaction, 0, len(all))
	for _, pt := range all {
		transactions = append(transactions, c.convert(pt, userID, lookup))
	}
	return transactions, nil
}

func (c *Client) convert(pt plaid.Transaction, userID string, lookup AccountLookup) model.Transaction {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		c.logger.Error("Failed to parse transaction date", "date", pt.GetDate(), "error", err)
		date = time.Now()
	}

	merchantName := pt.GetMerchantName()
	if merchantName == "" {
		merchantName = pt.GetName()
	}

	// Plaid reports outflows as positive; our model is negative-out.
	tx := model.Transaction{
		ID:           pt.GetTransactionId(),
		UserID:       userID,
		Date:         date,
		Name:         pt.GetName(),
		MerchantName: cleanMerchantName(merchantName),
		AccountName:  lookup.Name(pt.GetAccountId()),
		Amount:       -pt.GetAmount(),
		InboxState:   model.InboxUnclassified,
		Source:       model.SourceNone,
	}

	return tx
}

// cleanMerchantName strips trailing long digit runs ("MERCHANT 123456789")
// that banks append as internal references.
func cleanMerchantName(name string) string {
	parts := strings.Fields(name)
	if len(parts) > 1 {
		last := parts[len(parts)-1]
		if len(last) > 5 && isAllDigits(last) {
			parts = parts[:len(parts)-1]
		}
	}
	return strings.Join(parts, " ")
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func wrapPlaidError(logger *slog.Logger, err error, msg string) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr == nil {
		if plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
			logger.Warn("Rate limit hit, will retry", "error", plaidErr.ErrorMessage)
			return &common.RetryableError{Err: common.ErrFeedRateLimit, Retryable: true}
		}
		return fmt.Errorf("%s: %s - %s", msg, plaidErr.ErrorCode, plaidErr.ErrorMessage)
	}
	// Not a Plaid API error, so the request never got through.
	return fmt.Errorf("%s: %w: %v", msg, common.ErrFeedConnection, err)
}
