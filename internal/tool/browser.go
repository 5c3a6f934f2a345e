package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	browserTimeout  = 10 * time.Second
	maxPageBytes    = 5 << 20
	maxPageMarkdown = 12000
	maxLinks        = 50
)

// Browser owns the single process-wide page session. Concurrent sessions
// share it; browser_open must precede the other browser tools.
type Browser struct {
	mu      sync.Mutex
	client  *http.Client
	pageURL string
	doc     *goquery.Document
}

// NewBrowser creates the shared browser state.
func NewBrowser() *Browser {
	return &Browser{client: &http.Client{Timeout: browserTimeout}}
}

func (b *Browser) open(ctx context.Context, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("url must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "isocode/1.0")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.pageURL = rawURL
	b.doc = doc
	b.mu.Unlock()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	return title, nil
}

func (b *Browser) page() (*goquery.Document, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc == nil {
		return nil, "", fmt.Errorf("no page open; call browser_open first")
	}
	return b.doc, b.pageURL, nil
}

// BrowserOpenTool loads a page into the shared browser session.
type BrowserOpenTool struct{ Browser *Browser }

func (t BrowserOpenTool) Name() string     { return "browser_open" }
func (t BrowserOpenTool) Category() string { return CategoryBrowser }
func (t BrowserOpenTool) Description() string {
	return "Open a URL in the shared browser session (required before other browser tools)"
}
func (t BrowserOpenTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (t BrowserOpenTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "Page URL (http or https)"}
		},
		"required": ["url"]
	}`)
}

func (t BrowserOpenTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	rawURL, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}
	title, err := t.Browser.open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return map[string]any{"opened": rawURL, "title": title}, nil
}

// BrowserReadTool renders the open page as markdown.
type BrowserReadTool struct{ Browser *Browser }

func (t BrowserReadTool) Name() string        { return "browser_read" }
func (t BrowserReadTool) Category() string    { return CategoryBrowser }
func (t BrowserReadTool) Description() string { return "Read the open page as markdown" }
func (t BrowserReadTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (t BrowserReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t BrowserReadTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	doc, pageURL, err := t.Browser.page()
	if err != nil {
		return nil, err
	}

	html, err := doc.Find("body").Html()
	if err != nil {
		return nil, err
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return nil, err
	}
	if len(markdown) > maxPageMarkdown {
		markdown = markdown[:maxPageMarkdown] + "\n… [page truncated]"
	}
	return map[string]any{"url": pageURL, "content": markdown}, nil
}

// BrowserFindTool extracts text by CSS selector.
type BrowserFindTool struct{ Browser *Browser }

func (t BrowserFindTool) Name() string        { return "browser_find" }
func (t BrowserFindTool) Category() string    { return CategoryBrowser }
func (t BrowserFindTool) Description() string { return "Extract text from the open page by CSS selector" }
func (t BrowserFindTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (t BrowserFindTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"selector": {"type": "string", "description": "CSS selector"}
		},
		"required": ["selector"]
	}`)
}

func (t BrowserFindTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	selector, err := requireString(args, "selector")
	if err != nil {
		return nil, err
	}
	doc, _, err := t.Browser.page()
	if err != nil {
		return nil, err
	}

	var matches []any
	doc.Find(selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		matches = append(matches, strings.TrimSpace(sel.Text()))
		return len(matches) < maxMatchesFind
	})
	return map[string]any{"matches": matches, "total": len(matches)}, nil
}

const maxMatchesFind = 30

// BrowserLinksTool lists the links on the open page.
type BrowserLinksTool struct{ Browser *Browser }

func (t BrowserLinksTool) Name() string        { return "browser_links" }
func (t BrowserLinksTool) Category() string    { return CategoryBrowser }
func (t BrowserLinksTool) Description() string { return "List links on the open page" }
func (t BrowserLinksTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (t BrowserLinksTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t BrowserLinksTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	doc, pageURL, err := t.Browser.page()
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	var links []any
	doc.Find("a[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if base != nil {
			if u, err := url.Parse(href); err == nil {
				href = base.ResolveReference(u).String()
			}
		}
		text := strings.TrimSpace(sel.Text())
		links = append(links, fmt.Sprintf("%s -> %s", text, href))
		return len(links) < maxLinks
	})
	return map[string]any{"links": links, "total": len(links)}, nil
}
