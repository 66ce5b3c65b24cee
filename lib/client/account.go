package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"erkc63/lib/textutil"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// AccountInfo is the summary of an account page, visible to the
// authorized owner.
type AccountInfo struct {
	Account int64
	Address string
	Balance float64
	Peni    float64
}

// PublicAccountInfo is what the portal discloses about an account
// without authorization.
type PublicAccountInfo struct {
	Account int64
	Address string
	Balance float64
	Peni    float64
}

// AccountInfo fetches the summary of a bound account. A zero account
// means the primary one.
func (c *Client) AccountInfo(ctx context.Context, account int64) (AccountInfo, error) {
	ctx, span := tracer.Start(ctx, "client:AccountInfo")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return AccountInfo{}, err
	}
	account, err := c.resolveAccount(account)
	if err != nil {
		return AccountInfo{}, err
	}

	res, err := c.get(ctx, fmt.Sprintf("/account/%d", account), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch account page")
		return AccountInfo{}, err
	}
	return parseAccountInfo(res.Body(), account)
}

// BindAccount binds an account to the cabinet. The portal requires
// the amount of the last bill as proof of ownership. Binding an
// already-bound account is a no-op. The bind is verified against the
// re-parsed account list, not assumed.
func (c *Client) BindAccount(ctx context.Context, account int64, lastBillAmount float64) error {
	ctx, span := tracer.Start(ctx, "client:BindAccount")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return err
	}
	accounts, err := c.Accounts()
	if err != nil {
		return err
	}
	if slices.Contains(accounts, account) {
		slog.InfoContext(ctx, "account already bound", "account", account)
		return nil
	}
	if lastBillAmount <= 0 {
		return fmt.Errorf("%w: last bill amount must be positive", ErrValidation)
	}

	slog.DebugContext(ctx, "binding account", "account", account)

	res, err := c.postForm(ctx, "/account/add", map[string]string{
		"account": strconv.FormatInt(account, 10),
		"summ":    strconv.FormatFloat(lastBillAmount, 'f', -1, 64),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bind request failed")
		return err
	}

	bound, err := c.refreshAccounts(ctx, res.Body())
	if err != nil {
		return err
	}
	if !slices.Contains(bound, account) {
		return fmt.Errorf("%w: account %d is still unbound", ErrAccountBinding, account)
	}
	return nil
}

// BindPublicAccount binds the account described by a public info
// record, defaulting the bill amount to its balance.
func (c *Client) BindPublicAccount(ctx context.Context, info PublicAccountInfo) error {
	return c.BindAccount(ctx, info.Account, info.Balance)
}

// UnbindAccount removes an account from the cabinet. Unbinding an
// unbound account is a no-op.
func (c *Client) UnbindAccount(ctx context.Context, account int64) error {
	ctx, span := tracer.Start(ctx, "client:UnbindAccount")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return err
	}
	accounts, err := c.Accounts()
	if err != nil {
		return err
	}
	if !slices.Contains(accounts, account) {
		slog.InfoContext(ctx, "account not bound", "account", account)
		return nil
	}

	slog.DebugContext(ctx, "unbinding account", "account", account)

	res, err := c.postForm(ctx, fmt.Sprintf("/account/%d/remove", account), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unbind request failed")
		return err
	}

	bound, err := c.refreshAccounts(ctx, res.Body())
	if err != nil {
		return err
	}
	if slices.Contains(bound, account) {
		return fmt.Errorf("%w: account %d is still bound", ErrAccountBinding, account)
	}
	return nil
}

// refreshAccounts re-parses the bound account list from a mutation
// response and stores it.
func (c *Client) refreshAccounts(ctx context.Context, body []byte) ([]int64, error) {
	accounts, err := parseAccounts(body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.accounts = accounts
	c.mu.Unlock()
	slog.DebugContext(ctx, "bound accounts updated", "accounts", accounts)
	return accounts, nil
}

// PubAccountInfo fetches the public info of any account, no
// authorization needed. Returns nil when the portal does not know the
// account.
func (c *Client) PubAccountInfo(ctx context.Context, account int64) (*PublicAccountInfo, error) {
	ctx, span := tracer.Start(ctx, "client:PubAccountInfo")
	defer span.End()

	if err := c.guard(ctx, modePublic, false); err != nil {
		return nil, err
	}
	return c.pubAccountInfo(ctx, account)
}

func (c *Client) pubAccountInfo(ctx context.Context, account int64) (*PublicAccountInfo, error) {
	res, err := c.get(ctx, "/payment/checkLS", map[string]string{
		"ls": strconv.FormatInt(account, 10),
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		CheckLS      bool   `json:"checkLS"`
		Address      string `json:"address"`
		BalanceSumma string `json:"balanceSumma"`
		BalancePeni  string `json:"balancePeni"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: decoding checkLS: %v", ErrParsing, err)
	}
	if !body.CheckLS {
		slog.InfoContext(ctx, "account unknown to the portal", "account", account)
		return nil, nil
	}

	balance, err := textutil.ParseFloat(body.BalanceSumma)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	peni, err := textutil.ParseFloat(body.BalancePeni)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	return &PublicAccountInfo{
		Account: account,
		Address: textutil.Normalize(body.Address),
		Balance: balance,
		Peni:    peni,
	}, nil
}

// PubAccountsInfo resolves public info for several accounts
// concurrently. Accounts the portal does not know are left out of the
// result.
func (c *Client) PubAccountsInfo(ctx context.Context, accounts ...int64) (map[int64]*PublicAccountInfo, error) {
	ctx, span := tracer.Start(ctx, "client:PubAccountsInfo")
	defer span.End()

	if err := c.guard(ctx, modePublic, false); err != nil {
		return nil, err
	}

	result := make(map[int64]*PublicAccountInfo, len(accounts))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			info, err := c.pubAccountInfo(ctx, account)
			if err != nil {
				return err
			}
			if info == nil {
				return nil
			}
			mu.Lock()
			result[account] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
