package sfapi

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const serverListURL = "https://www.sfgame.net/"

var serverListClient = resty.New().
	SetHeader("user-agent", userAgent).
	SetTimeout(time.Second * 30)

// FetchServerList scrapes the public server selection page. The page
// carries every world as an <option> whose value is the server host.
func FetchServerList(ctx context.Context) ([]ServerRef, error) {
	ctx, span := tracer.Start(ctx, "FetchServerList")
	defer span.End()

	res, err := serverListClient.R().SetContext(ctx).Get(serverListURL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("server list returned http %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, err
	}

	var servers []ServerRef
	seen := map[string]bool{}
	doc.Find("select.server-select option, select#server option").
		Each(func(_ int, sel *goquery.Selection) {
			host, ok := sel.Attr("value")
			host = strings.TrimSpace(host)
			if !ok || host == "" || seen[host] {
				return
			}
			seen[host] = true
			servers = append(servers, ServerRef{
				Name: strings.TrimSpace(sel.Text()),
				URL:  "https://" + host,
			})
		})

	if len(servers) == 0 {
		return nil, fmt.Errorf("no servers found on %s", serverListURL)
	}
	return servers, nil
}
