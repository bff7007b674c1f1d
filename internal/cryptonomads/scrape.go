package cryptonomads

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SideEventLink is one side-event entry found on a series page.
type SideEventLink struct {
	Href   string
	LumaID string
}

// TopLevelEventPath reduces a listing href to its series path: "/e/<x>/..."
// becomes "/e/<x>", anything else "/<first segment>".
func TopLevelEventPath(path string) string {
	path = strings.TrimRight(path, "/")
	parts := strings.Split(path, "/")
	if strings.HasPrefix(path, "/e/") && len(parts) > 2 {
		return "/" + parts[1] + "/" + parts[2]
	}
	if len(parts) > 1 {
		return "/" + parts[1]
	}
	return path
}

// IsFutureEventPath reports whether a top-level path points at an
// announced-but-unlisted event.
func IsFutureEventPath(path string) bool {
	return strings.Contains(path, "/e/")
}

func parseHTMLDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// TopLevelPaths scrapes the homepage listing and returns each distinct series
// path in first-seen order.
func (c *Client) TopLevelPaths(ctx context.Context) ([]string, error) {
	body, err := c.fetchPage(ctx, "/")
	if err != nil {
		return nil, err
	}
	doc, err := parseHTMLDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse homepage: %w", err)
	}
	return topLevelPaths(doc), nil
}

func topLevelPaths(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var paths []string
	doc.Find("a.event-row").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || len(href) <= 1 {
			return
		}
		p := TopLevelEventPath(strings.TrimSuffix(href, "/"))
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	})
	return paths
}

// SideEventLinks scrapes a series page for side-event rows and any lu.ma links
// present in the served HTML.
func (c *Client) SideEventLinks(ctx context.Context, topLevelPath string) ([]SideEventLink, error) {
	body, err := c.fetchPage(ctx, topLevelPath)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTMLDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", topLevelPath, err)
	}
	return sideEventLinks(doc), nil
}

func sideEventLinks(doc *goquery.Document) []SideEventLink {
	seen := map[string]bool{}
	var links []SideEventLink

	add := func(href, lumaID string) {
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, SideEventLink{Href: href, LumaID: lumaID})
	}

	doc.Find("a.thin-side-event-row").Each(func(_ int, row *goquery.Selection) {
		href, _ := row.Attr("href")
		lumaID := LumaIDFromURL(href)
		if lumaID == "" {
			if v, ok := row.Attr("data-luma-url"); ok {
				lumaID = LumaIDFromURL(v)
			}
		}
		add(href, lumaID)
	})

	doc.Find(`a[href*="lu.ma"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		add(href, LumaIDFromURL(href))
	})

	return links
}
