package tool_webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Tool identity constants.
const (
	Group = "web"
	Name  = "web_fetch"
)

const maxResponseSize = 5 * 1024 * 1024 // 5MB

const webFetchPrompt = `Fetches content from a URL and returns it in the requested format.

Usage:
- format is one of text, markdown, or html. Use markdown for documentation pages, text for plain content or API responses, html for the raw structure.
- Only http and https URLs are supported; redirects are followed.
- Responses are capped at 5MB.
- Set timeout (seconds, max 120) for slow sites.`

// WebFetchInput represents the parameters for web_fetch.
type WebFetchInput struct {
	URL     string `json:"url" required:"true" description:"The URL to fetch content from"`
	Format  string `json:"format" required:"true" description:"Output format: text, markdown, or html"`
	Timeout int    `json:"timeout,omitempty" description:"Timeout in seconds (max 120, default 30)"`
}

// WebFetchOutput represents the response from web_fetch.
type WebFetchOutput struct {
	Content     string `json:"content" description:"The fetched content in the requested format"`
	StatusCode  int    `json:"status_code" description:"HTTP status code of the response"`
	URL         string `json:"url" description:"The final URL after redirects"`
	ContentType string `json:"content_type,omitempty" description:"Content-Type header of the response"`
}

// Doer issues HTTP requests; swapped for a double in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Tool returns the web_fetch tool using a default HTTP client.
func Tool() (agent.Tool, error) {
	return ToolWithClient(nil)
}

// ToolWithClient returns the web_fetch tool backed by the given client.
func ToolWithClient(client Doer) (agent.Tool, error) {
	return agent.NewGenericTool(Group, Name, webFetchPrompt, makeWebFetchHandler(client))
}

func makeWebFetchHandler(client Doer) func(ctx context.Context, input WebFetchInput) (WebFetchOutput, error) {
	return func(ctx context.Context, input WebFetchInput) (WebFetchOutput, error) {
		logger := toolsutil.GetLogger()

		if err := ctx.Err(); err != nil {
			return WebFetchOutput{}, err
		}

		format := strings.ToLower(input.Format)
		switch format {
		case "text", "markdown", "html":
		default:
			return WebFetchOutput{}, fmt.Errorf("%w: format must be one of: text, markdown, html", toolsutil.ErrInvalidParams)
		}
		if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
			return WebFetchOutput{}, fmt.Errorf("%w: URL must start with http:// or https://", toolsutil.ErrInvalidParams)
		}

		timeout := input.Timeout
		if timeout <= 0 {
			timeout = 30
		} else if timeout > 120 {
			timeout = 120
		}

		if client == nil {
			client = &http.Client{
				Timeout: time.Duration(timeout) * time.Second,
				CheckRedirect: func(req *http.Request, via []*http.Request) error {
					if len(via) >= 10 {
						return fmt.Errorf("too many redirects")
					}
					return nil
				},
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, input.URL, nil)
		if err != nil {
			return WebFetchOutput{}, fmt.Errorf("failed to create request: %v", err)
		}
		req.Header.Set("User-Agent", "steward/1.0")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return WebFetchOutput{}, ctx.Err()
			}
			logger.Error("fetch failed", "url", input.URL, "error", err)
			return WebFetchOutput{}, fmt.Errorf("failed to fetch URL: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return WebFetchOutput{}, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			if ctx.Err() != nil {
				return WebFetchOutput{}, ctx.Err()
			}
			return WebFetchOutput{}, fmt.Errorf("failed to read response: %v", err)
		}

		contentType := resp.Header.Get("Content-Type")
		content := renderContent(string(body), contentType, format, logger.Warn)

		finalURL := input.URL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}

		logger.Info("fetched web content", "url", input.URL, "status", resp.StatusCode, "size", len(body), "format", format)

		return WebFetchOutput{
			Content:     content,
			StatusCode:  resp.StatusCode,
			URL:         finalURL,
			ContentType: contentType,
		}, nil
	}
}

func renderContent(raw, contentType, format string, warn func(msg string, args ...any)) string {
	isHTML := strings.Contains(contentType, "text/html")
	switch format {
	case "text":
		if isHTML {
			text, err := extractTextFromHTML(raw)
			if err != nil {
				warn("failed to extract text from HTML, returning raw content", "error", err)
				return raw
			}
			return text
		}
		return raw
	case "markdown":
		if isHTML {
			markdown, err := convertHTMLToMarkdown(raw)
			if err != nil {
				warn("failed to convert HTML to markdown, wrapping in code block", "error", err)
				return "```html\n" + raw + "\n```"
			}
			return markdown
		}
		if strings.Contains(contentType, "application/json") {
			return "```json\n" + raw + "\n```"
		}
		return "```\n" + raw + "\n```"
	default: // html
		return raw
	}
}

func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	lines := strings.Split(doc.Text(), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n"), nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	return markdown, nil
}
