package sfapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"
	"scrapbook-helper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/net/publicsuffix"
)

var tracer = otel.Tracer("sfapi")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client talks to one game server. It is safe for concurrent use; every
// authenticated character gets its own Session on top of it.
type Client struct {
	http *resty.Client
	url  string
}

func NewClient(serverURL string) (*Client, error) {
	serverURL = strings.TrimSuffix(serverURL, "/")
	if !strings.HasPrefix(serverURL, "http") {
		serverURL = "https://" + serverURL
	}

	client := resty.New()
	client.SetBaseURL(serverURL)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(time.Second * 30)
	// the official servers sit behind cloudflare
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "sfapi/http")

	return &Client{http: client, url: serverURL}, nil
}

func (c *Client) URL() string { return c.url }

// Ident normalizes a server url into a short identifier usable in file
// names, e.g. "https://s1.sfgame.net" -> "s1sfgamenet".
func Ident(serverURL string) string {
	s := strings.TrimPrefix(strings.ToLower(serverURL), "https:")
	s = strings.TrimPrefix(s, "http:")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type envelope struct {
	Error      string          `json:"error"`
	RetryAfter int             `json:"retry_after"`
	Data       json.RawMessage `json:"data"`
}

// send issues one command against the server and decodes the response
// envelope into out. All protocol failures come back classified.
func (c *Client) send(ctx context.Context, sid, action string, params map[string]string, out any) error {
	ctx, span := tracer.Start(ctx, action)
	defer span.End()

	req := c.http.R().SetContext(ctx).SetFormData(params).SetFormData(map[string]string{
		"action": action,
	})
	if sid != "" {
		req.SetFormData(map[string]string{"sid": sid})
	}

	res, err := req.Post("/api/cmd.php")
	if err != nil {
		return &Error{Kind: KindTransient, Message: err.Error()}
	}

	switch code := res.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimited,
			RetryAfter: retryAfterHeader(res),
			Message:    "http 429",
		}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &Error{Kind: KindAuth, Message: fmt.Sprintf("http %d", code)}
	case code != http.StatusOK:
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("http %d", code)}
	}

	var env envelope
	err = json.Unmarshal(res.Body(), &env)
	if err != nil {
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("malformed response: %s", err)}
	}
	if env.Error != "" {
		return classifyGameError(env)
	}

	if out != nil {
		err = json.Unmarshal(env.Data, out)
		if err != nil {
			return &Error{Kind: KindTransient, Message: fmt.Sprintf("malformed payload: %s", err)}
		}
	}
	return nil
}

func retryAfterHeader(res *resty.Response) time.Duration {
	secs, err := strconv.Atoi(res.Header().Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func classifyGameError(env envelope) error {
	msg := strings.ToLower(env.Error)
	switch {
	case strings.Contains(msg, "too many requests"), env.RetryAfter > 0:
		return &Error{
			Kind:       KindRateLimited,
			RetryAfter: time.Duration(env.RetryAfter) * time.Second,
			Message:    env.Error,
		}
	case strings.Contains(msg, "session"), strings.Contains(msg, "login"), strings.Contains(msg, "password"):
		return &Error{Kind: KindAuth, Message: env.Error}
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no longer exists"):
		return &Error{Kind: KindUnreachable, Message: env.Error}
	default:
		return &Error{Kind: KindTransient, Message: env.Error}
	}
}
