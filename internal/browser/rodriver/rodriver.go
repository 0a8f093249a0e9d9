// Package rodriver implements the browser driver on go-rod.
package rodriver

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/example/visit-scheduler/internal/browser"
)

// darkCaptchaCrop is the challenge sub-region on portals that render the
// high-contrast captcha variant.
var darkCaptchaCrop = image.Rect(200, 0, 400, 177)

const lookupTimeout = 3 * time.Second

type Options struct {
	Headless bool
	PagesDir string
}

// Factory returns a browser.Factory opening one fresh Chrome session per call.
func Factory(opts Options) browser.Factory {
	return func() (browser.Driver, error) {
		return open(opts)
	}
}

type session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	pagesDir string
}

func open(opts Options) (*session, error) {
	// Leakless deadlocks on Windows, see go-rod/rod#853.
	l := launcher.New().
		Leakless(runtime.GOOS != "windows").
		Headless(opts.Headless)

	if bin, ok := launcher.LookPath(); ok {
		l = l.Bin(bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &session{launcher: l, browser: b, pagesDir: opts.PagesDir}, nil
}

func (s *session) Open(url string) error {
	if s.page == nil {
		p, err := stealth.Page(s.browser)
		if err != nil {
			return fmt.Errorf("create page: %w", err)
		}
		s.page = p
	}
	if err := s.page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return s.page.WaitLoad()
}

func (s *session) element(id string) (*rod.Element, error) {
	el, err := s.page.Timeout(lookupTimeout).Element("#" + id)
	if err != nil {
		return nil, classify(err)
	}
	return el, nil
}

func (s *session) Fill(id, text string) error {
	el, err := s.element(id)
	if err != nil {
		return err
	}
	return el.Input(text)
}

func (s *session) SelectOption(id, value string) error {
	el, err := s.element(id)
	if err != nil {
		return err
	}
	_, err = el.Eval(`(v) => {
		this.value = v;
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`, value)
	return err
}

func (s *session) Click(id string) (bool, error) {
	el, err := s.page.Timeout(lookupTimeout).Element("#" + id)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, classify(err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, classify(err)
	}
	_ = s.page.WaitLoad()
	return true, nil
}

func (s *session) Text(id string) (string, error) {
	el, err := s.element(id)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (s *session) BodyText() (string, error) {
	el, err := s.page.Timeout(lookupTimeout).Element("body")
	if err != nil {
		return "", classify(err)
	}
	return el.Text()
}

func (s *session) Exists(id string) bool {
	_, err := s.page.Timeout(lookupTimeout).Element("#" + id)
	return err == nil
}

// Calendar reads the month table: cell 1 is "previous month", cell 2 the
// month label, cell 3 "next month", everything after that a day cell.
func (s *session) Calendar(xpath string) (browser.Calendar, error) {
	table, err := s.page.Timeout(lookupTimeout).ElementX(xpath)
	if err != nil {
		return browser.Calendar{}, classify(err)
	}
	cells, err := table.Elements("td")
	if err != nil {
		return browser.Calendar{}, classify(err)
	}
	if len(cells) < 8 {
		return browser.Calendar{}, fmt.Errorf("calendar table has %d cells, want at least 8", len(cells))
	}

	var cal browser.Calendar
	cal.MonthLabel, err = cells[2].Text()
	if err != nil {
		return browser.Calendar{}, classify(err)
	}
	cal.PrevLink = cellLink(cells[1])
	cal.NextLink = cellLink(cells[3])

	for _, cell := range cells[4:] {
		label, err := cell.Text()
		if err != nil {
			return browser.Calendar{}, classify(err)
		}
		disabled, err := cell.Attribute("disabled")
		if err != nil {
			return browser.Calendar{}, classify(err)
		}
		cal.Days = append(cal.Days, browser.Day{
			Label:    strings.TrimSpace(label),
			Disabled: disabled != nil,
			Link:     cellLink(cell),
		})
	}
	return cal, nil
}

func cellLink(cell *rod.Element) string {
	a, err := cell.Timeout(200 * time.Millisecond).Element("a")
	if err != nil {
		return ""
	}
	href, err := a.Attribute("href")
	if err != nil || href == nil {
		return ""
	}
	return *href
}

func (s *session) FollowLink(link string) error {
	if js, ok := strings.CutPrefix(link, "javascript:"); ok {
		_, err := s.page.Eval(fmt.Sprintf(`() => { %s; }`, js))
		if err != nil {
			return classify(err)
		}
		_ = s.page.WaitLoad()
		return nil
	}
	if err := s.page.Navigate(link); err != nil {
		return classify(err)
	}
	return s.page.WaitLoad()
}

func (s *session) PickFirstWindow(id string) ([]string, error) {
	list, err := s.element(id)
	if err != nil {
		return nil, err
	}
	cells, err := list.Elements("td")
	if err != nil {
		return nil, classify(err)
	}
	if len(cells) == 0 {
		return nil, browser.ErrElementNotFound
	}

	labels := make([]string, 0, len(cells))
	for _, cell := range cells {
		text, err := cell.Text()
		if err != nil {
			return nil, classify(err)
		}
		labels = append(labels, strings.TrimSpace(text))
	}

	input, err := cells[0].Element("input")
	if err != nil {
		return nil, classify(err)
	}
	if err := input.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, classify(err)
	}
	return labels, nil
}

func (s *session) reasonEntry(id string, index int) (*rod.Element, error) {
	list, err := s.element(id)
	if err != nil {
		return nil, err
	}
	entries, err := list.Elements("dd")
	if err != nil {
		return nil, classify(err)
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("reason list %s has %d entries, want index %d", id, len(entries), index)
	}
	return entries[index], nil
}

func (s *session) OptionLink(id string, index int) (string, error) {
	entry, err := s.reasonEntry(id, index)
	if err != nil {
		return "", err
	}
	a, err := entry.Element("a")
	if err != nil {
		return "", classify(err)
	}
	href, err := a.Attribute("href")
	if err != nil || href == nil {
		return "", browser.ErrElementNotFound
	}
	return *href, nil
}

func (s *session) ClickOption(id string, index int) error {
	entry, err := s.reasonEntry(id, index)
	if err != nil {
		return err
	}
	if err := entry.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(err)
	}
	_ = s.page.WaitLoad()
	return nil
}

func (s *session) Screenshot(id string, crop bool) (string, error) {
	el, err := s.element(id)
	if err != nil {
		return "", err
	}
	shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return "", classify(err)
	}
	if crop {
		shot, err = cropPNG(shot, darkCaptchaCrop)
		if err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(shot), nil
}

func cropPNG(data []byte, rect image.Rectangle) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode captcha image: %w", err)
	}
	rect = rect.Intersect(src.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("captcha crop region outside image bounds %v", src.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *session) CurrentURL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", classify(err)
	}
	return info.URL, nil
}

func (s *session) SavePage(prefix string) error {
	if s.page == nil {
		return nil
	}
	html, err := s.page.HTML()
	if err != nil {
		return classify(err)
	}
	if err := os.MkdirAll(s.pagesDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s.html", prefix, time.Now().Format("2006-01-02T15-04-05"))
	return os.WriteFile(filepath.Join(s.pagesDir, name), []byte(html), 0o644)
}

func (s *session) Close() {
	if s.page != nil {
		_ = proto.NetworkClearBrowserCookies{}.Call(s.page)
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "cannot find element")
}

func isStale(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Could not find node with given id") ||
		strings.Contains(msg, "Node with given id does not belong to the document")
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isStale(err):
		return fmt.Errorf("%w: %s", browser.ErrStaleElement, err)
	case isNotFound(err):
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, err)
	default:
		return err
	}
}
