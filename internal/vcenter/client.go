package vcenter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

// ErrInvalidCredentials marks an authentication failure as opposed to a
// transport failure. Callers surface it to the user without retrying.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Client fetches inventory from one vCenter server. It holds no open
// connection between calls: every operation establishes its own session and
// is guaranteed to tear it down on the way out.
type Client struct {
	server    string
	username  string
	password  string
	verifyTLS bool
	timeout   time.Duration
}

func NewClient(server, username, password string, verifyTLS bool, timeout time.Duration) *Client {
	return &Client{
		server:    server,
		username:  username,
		password:  password,
		verifyTLS: verifyTLS,
		timeout:   timeout,
	}
}

// conn is one live authenticated session.
type conn struct {
	vim   *vim25.Client
	sm    *session.Manager
	views *view.Manager
	pager propertyPager
}

func (c *Client) connect(ctx context.Context) (*conn, error) {
	u, err := soap.ParseURL(c.server)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	u.User = url.UserPassword(c.username, c.password)

	sc := soap.NewClient(u, !c.verifyTLS)
	vim, err := vim25.NewClient(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	sm := session.NewManager(vim)
	if err := sm.Login(ctx, u.User); err != nil {
		if isLoginFailure(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	return &conn{
		vim:   vim,
		sm:    sm,
		views: view.NewManager(vim),
		pager: &soapPager{client: vim},
	}, nil
}

func (s *conn) disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.sm.Logout(ctx); err != nil {
		zap.S().Named("vcenter").Debugf("logout failed: %v", err)
	}
	s.vim.CloseIdleConnections()
}

// withSession runs fn inside an authenticated session. The session is torn
// down on every exit path; callers cannot forget to disconnect. The
// configured timeout covers connection and login, which may block on
// out-of-band MFA approval.
func (c *Client) withSession(ctx context.Context, fn func(ctx context.Context, s *conn) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer s.disconnect()

	return fn(ctx, s)
}

// TestConnection verifies the endpoint and credentials without fetching any
// inventory.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.withSession(ctx, func(ctx context.Context, s *conn) error {
		return nil
	})
}

// isLoginFailure reports whether err is an authentication failure. The fault
// type is checked first; the message sniffing covers environments that wrap
// the fault in plain errors.
func isLoginFailure(err error) bool {
	if soap.IsSoapFault(err) {
		if _, ok := soap.ToSoapFault(err).VimFault().(types.InvalidLogin); ok {
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "Login failure") ||
		(strings.Contains(msg, "incorrect") && strings.Contains(msg, "password"))
}
