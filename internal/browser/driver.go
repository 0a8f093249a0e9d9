package browser

import "errors"

var (
	// ErrElementNotFound is returned by lookups other than Click when the
	// element is absent. Click reports absence as found=false instead.
	ErrElementNotFound = errors.New("browser: element not found")

	// ErrStaleElement is returned when the page re-rendered between reading a
	// structure and acting on it. Callers may simply re-read and retry.
	ErrStaleElement = errors.New("browser: stale element")
)

// Day is one calendar cell.
type Day struct {
	Label    string
	Disabled bool
	// Link is the postback href of the cell's anchor, empty when the cell has
	// none (padding cells, disabled days).
	Link string
}

// Calendar is one month of the booking calendar: a dynamically sized day
// sequence plus the named navigation cells.
type Calendar struct {
	MonthLabel string
	PrevLink   string
	// NextLink is empty when the portal offers no further month.
	NextLink string
	Days     []Day
}

// ActiveDays returns the cells not marked disabled.
func (c Calendar) ActiveDays() []Day {
	var out []Day
	for _, d := range c.Days {
		if !d.Disabled {
			out = append(out, d)
		}
	}
	return out
}

// Driver is one browser session bound to one page lifecycle. No business
// logic lives here; implementations only translate these operations to the
// underlying automation engine.
type Driver interface {
	// Open navigates the session's page, creating it on first use.
	Open(url string) error

	Fill(id, text string) error
	SelectOption(id, value string) error

	// Click reports found=false, not an error, when the element is absent.
	Click(id string) (bool, error)

	Text(id string) (string, error)
	BodyText() (string, error)
	Exists(id string) bool

	// Calendar reads the structured month table at the given xpath.
	Calendar(xpath string) (Calendar, error)

	// FollowLink executes a javascript: postback href, or navigates for a
	// plain URL.
	FollowLink(link string) error

	// PickFirstWindow reads the time-window option labels under the given
	// container and selects the first one. Returns ErrElementNotFound when
	// the container is absent.
	PickFirstWindow(id string) ([]string, error)

	// OptionLink returns the href of the n-th entry in the reason list.
	OptionLink(id string, index int) (string, error)
	// ClickOption clicks the n-th entry in the reason list.
	ClickOption(id string, index int) error

	// Screenshot captures the element as PNG, cropped to the challenge
	// sub-region when crop is set, and returns it base64-encoded.
	Screenshot(id string, crop bool) (string, error)

	CurrentURL() (string, error)

	// SavePage writes the current page source to the session's pages
	// directory under the given name prefix.
	SavePage(prefix string) error

	// Close drops session cookies and tears the browser down. Safe to call
	// on every exit path.
	Close()
}

// Factory opens a fresh session. The state machine opens one per run and
// closes it before the next.
type Factory func() (Driver, error)
