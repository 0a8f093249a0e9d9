// Package acquire drives one order through the portal's page flow: login,
// captcha, calendar traversal, confirmation.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/example/visit-scheduler/internal/browser"
	"github.com/example/visit-scheduler/internal/captcha"
	"github.com/example/visit-scheduler/internal/countries"
	"github.com/example/visit-scheduler/internal/orders"
)

// Element ids and markers of the target portal.
const (
	idOrderNumber  = "ctl00_MainContent_txtID"
	idSaveCode     = "ctl00_MainContent_txtUniqueID"
	idCaptchaImage = "ctl00_MainContent_imgSecNum"
	idCaptchaInput = "ctl00_MainContent_txtCode"
	idSubmit       = "ctl00_MainContent_ButtonA"
	idNext         = "ctl00_MainContent_ButtonB"
	idContent      = "ctl00_MainContent_Content"
	idLoginErr     = "ctl00_MainContent_lblCodeErr"
	idMessage      = "ctl00_MainContent_Label_Message"
	idWindowList   = "ctl00_MainContent_RadioButtonList1"
	idConfirm      = "ctl00_MainContent_Button1"
	idCentralPanel = "center-panel"

	calendarXPath = `//*[@id="ctl00_MainContent_Calendar"]`

	gatewayMarker = "502 - Bad Gateway"
)

var (
	blockedMarkers = []string{"ваша заявка заблокирована", "заблокирована"}
	noSlotMarkers  = []string{"нет свободного времени", "выбранное вами консульское действие востребовано"}
)

// NoSlots reports whether the status text carries the portal's "nothing
// available" wording. Such an outcome must not be persisted as a visit time.
func NoSlots(text string) bool {
	text = strings.ToLower(text)
	for _, m := range noSlotMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Outcome is the transient result of one run. An empty CentralPanel with no
// active days means the run ended cleanly with nothing to do; it is not a
// success and not an error.
type Outcome struct {
	MainContent  string
	CentralPanel string
	ActiveDays   []string
}

// CodeResolver recognizes a challenge image.
type CodeResolver interface {
	Resolve(ctx context.Context, imageBase64 string) (string, error)
}

// Acquirer runs the acquisition state machine. One session is opened per run
// and torn down on every exit path.
type Acquirer struct {
	NewSession browser.Factory
	Resolver   CodeResolver
	Registry   *countries.Registry
	Logger     *slog.Logger

	// Knobs below default when zero.
	Attempts    int                 // retry-wrapper budget, default 10
	Months      int                 // calendar traversal bound, default 3
	OCRAttempts int                 // captcha solve budget, default 3
	OCRDelay    time.Duration       // delay between captcha attempts, default 5s
	Sleep       func(time.Duration) // injectable for tests
	Rand        *rand.Rand
}

func (a *Acquirer) attempts() int {
	if a.Attempts > 0 {
		return a.Attempts
	}
	return 10
}

func (a *Acquirer) months() int {
	if a.Months > 0 {
		return a.Months
	}
	return 3
}

func (a *Acquirer) ocrAttempts() int {
	if a.OCRAttempts > 0 {
		return a.OCRAttempts
	}
	return 3
}

func (a *Acquirer) ocrDelay() time.Duration {
	if a.OCRDelay > 0 {
		return a.OCRDelay
	}
	return 5 * time.Second
}

func (a *Acquirer) sleep(d time.Duration) {
	if a.Sleep != nil {
		a.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (a *Acquirer) rand() *rand.Rand {
	if a.Rand == nil {
		a.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return a.Rand
}

func (a *Acquirer) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// AcquireVisit runs the full flow for one order under the retry policy.
func (a *Acquirer) AcquireVisit(ctx context.Context, o orders.Order) (Outcome, error) {
	country, err := a.Registry.Get(o.CountryID)
	if err != nil {
		return Outcome{}, err
	}
	return a.withRetry(ctx, func() (Outcome, error) {
		return a.acquireOnce(ctx, country, o)
	})
}

// AcceptByURL runs the login-only flow against an acceptance link from the
// notification mail.
func (a *Acquirer) AcceptByURL(ctx context.Context, url string) error {
	_, err := a.withRetry(ctx, func() (Outcome, error) {
		return Outcome{}, a.acceptOnce(ctx, url)
	})
	return err
}

func (a *Acquirer) acquireOnce(ctx context.Context, country countries.Country, o orders.Order) (Outcome, error) {
	d, err := a.NewSession()
	if err != nil {
		return Outcome{}, fmt.Errorf("open session: %w", err)
	}
	defer d.Close()

	log := a.log().With(slog.Int64("order", o.OrderNumber), slog.String("country", country.Name))

	if err := a.login(ctx, d, country, o); err != nil {
		return Outcome{}, a.classifyRun(d, err)
	}

	mainContent, err := d.Text(idContent)
	if err != nil {
		// A missing content block means the page is not the post-login page
		// at all, most often a silently failed login.
		log.Warn("post-login content missing", slog.Any("error", err))
		return Outcome{}, fmt.Errorf("%w: %s", ErrLoginAuth, err)
	}

	found, err := d.Click(idNext)
	if err != nil {
		return Outcome{}, a.structural(d, err)
	}
	if !found {
		log.Info("no further action control, nothing to do this cycle")
		return Outcome{MainContent: mainContent}, nil
	}

	body, err := d.BodyText()
	if err != nil {
		return Outcome{}, a.structural(d, err)
	}
	if strings.Contains(body, gatewayMarker) {
		log.Warn("portal gateway failure, skipping this cycle")
		return Outcome{MainContent: mainContent}, nil
	}

	if a.orderBlocked(d) {
		return Outcome{}, &BlockedError{OrderNumber: o.OrderNumber}
	}

	var lastDays []string
	selected := false
	for i := 0; i < a.months() && !selected; i++ {
		cal, err := d.Calendar(calendarXPath)
		if err != nil {
			return Outcome{}, a.structural(d, err)
		}

		active := cal.ActiveDays()
		lastDays = dayLabels(active)
		if len(active) > 0 {
			log.Info("active days found", slog.String("month", cal.MonthLabel), slog.Any("days", lastDays))

			err := d.FollowLink(active[0].Link)
			switch {
			case err == nil:
				selected = true
			case errors.Is(err, browser.ErrStaleElement):
				// The table re-rendered under us; re-read and try again.
				log.Warn("calendar went stale mid-click, retrying month")
			default:
				_ = d.SavePage("not_confirmed")
				return Outcome{}, fmt.Errorf("open day %q: %w", active[0].Label, err)
			}
			continue
		}

		if cal.NextLink == "" {
			// Every month exhausted: a clean no-slots cycle, not an error.
			log.Info("no free dates", slog.String("month", cal.MonthLabel))
			central, err := d.Text(idCentralPanel)
			if err != nil {
				return Outcome{}, a.structural(d, err)
			}
			return Outcome{MainContent: mainContent, CentralPanel: central}, nil
		}

		log.Info("no free dates, trying next month", slog.String("month", cal.MonthLabel))
		if err := d.FollowLink(cal.NextLink); err != nil {
			return Outcome{}, a.structural(d, err)
		}
	}

	if !selected {
		log.Info("traversal bound reached without a slot")
		return Outcome{MainContent: mainContent}, nil
	}

	if err := a.confirm(d, log); err != nil {
		return Outcome{}, a.structural(d, err)
	}

	_ = d.SavePage("confirmed")

	central, err := d.Text(idCentralPanel)
	if err != nil {
		return Outcome{}, a.structural(d, err)
	}

	log.Info("visit confirmed")
	return Outcome{
		MainContent:  mainContent,
		CentralPanel: central,
		ActiveDays:   lastDays,
	}, nil
}

func (a *Acquirer) confirm(d browser.Driver, log *slog.Logger) error {
	windows, err := d.PickFirstWindow(idWindowList)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			log.Warn("no time-window list after day selection")
			return nil
		}
		return err
	}
	for _, w := range windows {
		log.Info("free window", slog.String("window", w))
	}

	if _, err := d.Click(idConfirm); err != nil {
		return err
	}
	return nil
}

func (a *Acquirer) acceptOnce(ctx context.Context, url string) error {
	d, err := a.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer d.Close()

	if err := d.Open(url); err != nil {
		return err
	}

	dark := false
	if c, ok := a.Registry.MatchURL(url); ok {
		dark = c.DarkCaptcha
	}
	if err := a.solveCaptcha(ctx, d, dark); err != nil {
		return a.classifyRun(d, err)
	}

	if _, err := d.Click(idSubmit); err != nil {
		return a.structural(d, err)
	}
	if d.Exists(idLoginErr) || d.Exists(idMessage) {
		return ErrLoginAuth
	}
	return nil
}

func (a *Acquirer) login(ctx context.Context, d browser.Driver, country countries.Country, o orders.Order) error {
	if err := d.Open(country.OrderInfoURL()); err != nil {
		return err
	}
	if err := d.Fill(idOrderNumber, strconv.FormatInt(o.OrderNumber, 10)); err != nil {
		return err
	}
	if err := d.Fill(idSaveCode, o.SaveCode); err != nil {
		return err
	}
	if err := a.solveCaptcha(ctx, d, country.DarkCaptcha); err != nil {
		return err
	}
	if _, err := d.Click(idSubmit); err != nil {
		return err
	}
	if d.Exists(idLoginErr) {
		return ErrLoginAuth
	}
	return nil
}

// solveCaptcha captures the challenge, runs the bounded OCR loop and types
// the code. Transient recognizer failures are waited out; anything else from
// the recognizer is the service being broken and propagates untouched.
func (a *Acquirer) solveCaptcha(ctx context.Context, d browser.Driver, dark bool) error {
	img, err := d.Screenshot(idCaptchaImage, dark)
	if err != nil {
		return err
	}

	var code string
	for i := 0; i < a.ocrAttempts(); i++ {
		code, err = a.Resolver.Resolve(ctx, img)
		if err == nil {
			break
		}
		if !errors.Is(err, captcha.ErrServiceBusy) {
			return err
		}
		a.log().Warn("captcha service busy", slog.Int("attempt", i+1))
		a.sleep(a.ocrDelay())
		code = ""
	}
	if code == "" {
		return ErrCaptchaUnsolved
	}

	return d.Fill(idCaptchaInput, code)
}

func (a *Acquirer) orderBlocked(d browser.Driver) bool {
	for _, id := range []string{idMessage, idCentralPanel} {
		text, err := d.Text(id)
		if err != nil {
			continue
		}
		text = strings.ToLower(text)
		for _, m := range blockedMarkers {
			if strings.Contains(text, m) {
				return true
			}
		}
	}
	return false
}

// structural saves a diagnostic snapshot and passes the error through. The
// session is closed by the caller's deferred teardown.
func (a *Acquirer) structural(d browser.Driver, err error) error {
	_ = d.SavePage("error")
	return err
}

// classifyRun lets retryable run failures pass untouched and treats anything
// else as structural, keeping a snapshot of the page that broke.
func (a *Acquirer) classifyRun(d browser.Driver, err error) error {
	if retryable(err) {
		return err
	}
	return a.structural(d, err)
}

func dayLabels(days []browser.Day) []string {
	var out []string
	for _, d := range days {
		out = append(out, d.Label)
	}
	return out
}
