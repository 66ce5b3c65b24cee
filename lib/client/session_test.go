package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenAuthorizes(t *testing.T) {
	p := newPortal(t)
	c := newTestClient(t, p)
	ctx := context.Background()

	require.False(t, c.Opened())
	require.False(t, c.Authorized())

	require.NoError(t, c.Open(ctx))
	require.True(t, c.Opened())
	require.True(t, c.Authorized())

	accounts, err := c.Accounts()
	require.NoError(t, err)
	require.Equal(t, []int64{700001, 700002}, accounts)

	primary, err := c.PrimaryAccount()
	require.NoError(t, err)
	require.EqualValues(t, 700001, primary)

	// opening an open, authorized session is a no-op
	gets, posts, _ := p.counts()
	require.NoError(t, c.Open(ctx))
	gets2, posts2, _ := p.counts()
	require.Equal(t, gets, gets2)
	require.Equal(t, posts, posts2)

	require.NoError(t, c.Close(ctx, true))
	require.False(t, c.Opened())
	require.False(t, c.Authorized())
}

func TestOpenRejectedCredentials(t *testing.T) {
	p := newPortal(t)
	c, err := NewClient(ClientOptions{
		BaseUrl:  p.srv.URL,
		Login:    p.login,
		Password: "wrong",
		Gate:     NewAdmissionGate(),
	})
	require.NoError(t, err)

	err = c.Open(context.Background())
	require.ErrorIs(t, err, ErrAuthorization)

	// the session opened, only the login was rejected
	require.True(t, c.Opened())
	require.False(t, c.Authorized())
	require.NoError(t, c.Close(context.Background(), true))
}

func TestOpenMissingCredentials(t *testing.T) {
	p := newPortal(t)
	c, err := NewClient(ClientOptions{
		BaseUrl: p.srv.URL,
		Gate:    NewAdmissionGate(),
	})
	require.NoError(t, err)

	err = c.Open(context.Background())
	require.ErrorIs(t, err, ErrAuthorization)
	require.NoError(t, c.Close(context.Background(), true))
}

func TestOpenAsOverridesAndCaches(t *testing.T) {
	p := newPortal(t)
	c, err := NewClient(ClientOptions{
		BaseUrl:  p.srv.URL,
		Login:    p.login,
		Password: "stale-password",
		Gate:     NewAdmissionGate(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.OpenAs(ctx, p.login, p.password))
	require.True(t, c.Authorized())

	// the pair that worked must now be the cached pair: force a
	// relogin and let it use the cache
	require.NoError(t, c.Close(ctx, false))
	require.NoError(t, c.Open(ctx))
	require.True(t, c.Authorized())
}

func TestOpenTokenParsingError(t *testing.T) {
	p := newPortal(t)
	p.brokenLogin = true
	c := newTestClient(t, p)

	err := c.Open(context.Background())
	require.ErrorIs(t, err, ErrParsing)
	require.False(t, c.Opened())

	// the admission permit must have been released: a retry would
	// block forever on a leaked gate
	p.brokenLogin = false
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx))
	require.NoError(t, c.Close(context.Background(), true))
}

func TestCookieExpiryResetsSession(t *testing.T) {
	p := newPortal(t)
	c := newTestClient(t, p)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx))
	require.True(t, c.Authorized())

	// expiry exactly at the current second counts as expired
	c.mu.Lock()
	c.sessionExpiry = time.Now().UTC().Truncate(time.Second)
	c.mu.Unlock()

	c.checkSession()
	require.False(t, c.Opened())
	require.False(t, c.Authorized())

	// the reset is local, no request was made
	_, _, logouts := p.counts()
	require.Zero(t, logouts)

	// reopening after expiry must not deadlock on the held permit
	openCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Open(openCtx))
	require.NoError(t, c.Close(ctx, true))
}

func TestCookieExpiryInFutureKeepsSession(t *testing.T) {
	p := newPortal(t)
	c := newTestClient(t, p)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx))
	c.checkSession()
	require.True(t, c.Authorized())
	require.NoError(t, c.Close(ctx, true))
}

func TestCloseResetsEvenWhenLogoutFails(t *testing.T) {
	p := newPortal(t)
	c := newTestClient(t, p)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx))

	// kill the portal so the logout request fails
	p.srv.Close()
	err := c.Close(ctx, false)
	require.Error(t, err)
	require.False(t, c.Opened())
	require.False(t, c.Authorized())
}

func TestGuardLogsInOnDemand(t *testing.T) {
	p := newPortal(t)
	p.paymentRows = [][]string{{"15.06.2024", "150,00", "ЖКУ"}}
	c := newTestClient(t, p)
	ctx := context.Background()

	// no explicit Open: the guard must establish the session
	payments, err := c.PaymentsHistory(ctx, PaymentsHistoryRequest{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.True(t, c.Authorized())
	require.NoError(t, c.Close(ctx, true))
}

func TestPublicModeForcesFreshSession(t *testing.T) {
	p := newPortal(t)
	p.checkLS[123456] = checkLSBody{
		CheckLS:      true,
		Address:      "г. Самара, ул. Ленина, д. 1",
		BalanceSumma: "100,50",
		BalancePeni:  "0",
	}
	c := newTestClient(t, p)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx))
	require.True(t, c.Authorized())
	_, _, logoutsBefore := p.counts()

	info, err := c.PubAccountInfo(ctx, 123456)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.EqualValues(t, 123456, info.Account)
	require.Equal(t, 100.50, info.Balance)

	// the authorized session was dropped and a fresh anonymous one
	// opened in its place
	_, _, logoutsAfter := p.counts()
	require.Equal(t, logoutsBefore+1, logoutsAfter)
	require.True(t, c.Opened())
	require.False(t, c.Authorized())
	require.NoError(t, c.Close(ctx, true))
}
