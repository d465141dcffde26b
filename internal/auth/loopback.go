package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLoopbackTimeout is how long Loopback waits for the browser redirect
// before asking for the code on its input.
const DefaultLoopbackTimeout = 120 * time.Second

// Loopback runs the installed-app sign-in flow: it listens on a random
// 127.0.0.1 port, uses it as the redirect URI and captures the authorization
// code from the browser redirect. If the redirect does not arrive in time, the
// user can paste the code or the full redirect URL instead.
type Loopback struct {
	Gateway *Gateway
	Out     io.Writer
	In      io.Reader
	Timeout time.Duration

	// OnAuthURL is called with the consent URL once the listener is ready.
	// The default prints it to Out.
	OnAuthURL func(authURL string)
}

type codeResult struct {
	code string
	err  error
}

// SignIn runs the flow and returns the new session.
func (l *Loopback) SignIn(ctx context.Context) (*Session, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultLoopbackTimeout
	}
	state := uuid.NewString()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(l.out(), "Could not listen on loopback (%v); falling back to manual paste.\n", err)
		return l.manual(ctx, l.Gateway, state)
	}

	redirect := fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)
	gw := l.Gateway.WithRedirectURL(redirect)

	resCh := make(chan codeResult, 1)
	mux := http.NewServeMux()
	srv := &http.Server{ReadHeaderTimeout: 5 * time.Second, Handler: mux}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Sign-in was not completed: "+e, http.StatusBadRequest)
			select {
			case resCh <- codeResult{err: fmt.Errorf("authorization denied: %s", e)}:
			default:
			}
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Signed in to mailbuddy. You can close this window.")
		select {
		case resCh <- codeResult{code: code}:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	l.announce(gw.AuthCodeURL(state))
	fmt.Fprintf(l.out(), "Waiting for redirect on %s ...\n", redirect)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		return gw.SignIn(ctx, r.code)
	case <-time.After(timeout):
		fmt.Fprintln(l.out(), "Timeout waiting for redirect; falling back to manual paste.")
		// The pasted code was issued for the loopback redirect URI, so the
		// exchange must use the same one.
		return l.manual(ctx, gw, state)
	}
}

func (l *Loopback) manual(ctx context.Context, gw *Gateway, state string) (*Session, error) {
	l.announce(gw.AuthCodeURL(state))
	fmt.Fprintln(l.out(), "Paste the authorization code or the full redirect URL, then press Enter.")
	fmt.Fprint(l.out(), "> ")

	if l.In == nil {
		return nil, errors.New("no input available for manual sign-in")
	}
	sc := bufio.NewScanner(l.In)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read authorization code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}

	code, err := ParseAuthorizationInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return gw.SignIn(ctx, code)
}

func (l *Loopback) announce(authURL string) {
	if l.OnAuthURL != nil {
		l.OnAuthURL(authURL)
		return
	}
	fmt.Fprintln(l.out(), "Open this URL in your browser to sign in:")
	fmt.Fprintln(l.out(), authURL)
}

// ParseAuthorizationInput accepts either a bare authorization code or the
// full redirect URL and returns the code.
func ParseAuthorizationInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}

func (l *Loopback) out() io.Writer {
	if l.Out == nil {
		return io.Discard
	}
	return l.Out
}
