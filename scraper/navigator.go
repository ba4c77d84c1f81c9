package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"dealerwatch/config"
)

const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = { runtime: {} };
`

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// Navigator owns one browser session against the dealer site. It is
// the only component that touches Playwright; everything downstream
// works on the HTML it returns.
type Navigator struct {
	cfg        *config.ScraperConfig
	src        *config.SourceConfig
	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
	mu         sync.Mutex
	started    bool
}

func NewNavigator(cfg *config.ScraperConfig, src *config.SourceConfig) *Navigator {
	return &Navigator{cfg: cfg, src: src}
}

func (n *Navigator) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(n.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	ua := userAgents[rand.Intn(len(userAgents))]
	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(ua),
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("create context: %w", err)
	}

	if err := browserCtx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		log.Printf("Init script failed (continuing): %v", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return fmt.Errorf("create page: %w", err)
	}

	n.pw = pw
	n.browser = browser
	n.browserCtx = browserCtx
	n.page = page
	n.started = true
	return nil
}

func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.page != nil {
		n.page.Close()
		n.page = nil
	}
	if n.browserCtx != nil {
		n.browserCtx.Close()
		n.browserCtx = nil
	}
	if n.browser != nil {
		n.browser.Close()
		n.browser = nil
	}
	if n.pw != nil {
		n.pw.Stop()
		n.pw = nil
	}
	n.started = false
}

// Fetch navigates to pageURL and returns the settled document HTML,
// retrying with backoff when the page fails to load or a bot challenge
// refuses to clear.
func (n *Navigator) Fetch(ctx context.Context, pageURL string) (string, error) {
	if !n.started {
		return "", fmt.Errorf("navigator not started")
	}

	var lastErr error
	for attempt := 1; attempt <= n.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		content, err := n.fetchOnce(pageURL)
		if err == nil {
			return content, nil
		}
		lastErr = err

		backoff := retryBackoff(attempt)
		log.Printf("Fetch attempt %d/%d failed for %s: %v (retrying in %s)",
			attempt, n.cfg.MaxRetries, pageURL, err, backoff)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", fmt.Errorf("fetch %s: %w", pageURL, lastErr)
}

func (n *Navigator) fetchOnce(pageURL string) (string, error) {
	page := n.page

	_, err := page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return "", fmt.Errorf("goto: %w", err)
	}

	// Network idle is best effort; heavy dealer widgets keep sockets
	// open long past the content we need.
	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(15000),
	})

	settle := n.src.SettleDelayMS
	if settle <= 0 {
		settle = 2000
	}
	page.WaitForTimeout(float64(settle))

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("content: %w", err)
	}

	if trigger := n.detectChallenge(content); trigger != "" {
		log.Printf("Bot challenge detected (%q), attempting to clear", trigger)
		n.resolveChallenge(page)

		content, err = page.Content()
		if err != nil {
			return "", fmt.Errorf("content after challenge: %w", err)
		}
		if trigger := n.detectChallenge(content); trigger != "" {
			return "", fmt.Errorf("challenge not cleared (%q)", trigger)
		}
	}

	return content, nil
}

func (n *Navigator) detectChallenge(content string) string {
	lower := strings.ToLower(content)
	for _, sig := range n.src.ChallengeSignatures {
		if strings.Contains(lower, strings.ToLower(sig)) {
			return sig
		}
	}
	return ""
}

func (n *Navigator) resolveChallenge(page playwright.Page) {
	// Most interstitials clear themselves given time.
	page.WaitForTimeout(10000)

	clickSelectors := []string{
		"input[type='checkbox']",
		"[id*='checkbox']",
		"button:has-text('Verify')",
		"button:has-text('Continue')",
		"div[class*='verify']",
	}

	for _, selector := range clickSelectors {
		el := page.Locator(selector).First()
		if visible, _ := el.IsVisible(); visible {
			log.Printf("Clicking challenge element: %s", selector)
			el.Click()
			page.WaitForTimeout(3000)
			break
		}
	}

	for _, frame := range page.Frames() {
		if frame == page.MainFrame() {
			continue
		}
		el := frame.Locator("input[type='checkbox'], [id*='checkbox'], button").First()
		if visible, _ := el.IsVisible(); visible {
			log.Println("Clicking challenge element inside iframe")
			el.Click()
			page.WaitForTimeout(3000)
			return
		}
	}
}

const retryBaseDelay = 5 * time.Second

// retryBackoff doubles the wait on each attempt and adds up to a
// second of jitter so retries never land on a clean cadence.
func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return retryBaseDelay*time.Duration(1<<(attempt-1)) +
		time.Duration(rand.Int63n(int64(time.Second)))
}

// humanDelay sleeps a random interval within [minMs, maxMs).
func humanDelay(minMs, maxMs int) {
	if maxMs <= minMs {
		time.Sleep(time.Duration(minMs) * time.Millisecond)
		return
	}
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
