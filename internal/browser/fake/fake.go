// Package fake is a scripted in-memory driver for state-machine tests.
package fake

import (
	"fmt"

	"github.com/example/visit-scheduler/internal/browser"
)

type Driver struct {
	// Script: element text by id; a missing id means the element is absent.
	Texts map[string]string
	// Click targets present on the page. Defaults to found for any id not
	// listed in Missing.
	Missing map[string]bool
	Body    string
	URL     string
	// URLs, when set, are returned in order by successive CurrentURL calls;
	// the last one repeats.
	URLs []string

	// Calendars are returned in order by successive Calendar calls; the last
	// one repeats. CalendarErrs, when non-nil at the same index, is returned
	// instead.
	Calendars    []browser.Calendar
	CalendarErrs []error

	// FollowErrs scripts FollowLink failures per link.
	FollowErrs map[string]error

	WindowLabels []string
	WindowErr    error

	OptionLinks map[int]string

	ScreenshotB64 string
	ScreenshotErr error

	// Recorded interactions.
	Opened     []string
	Crops      []bool
	Filled     map[string]string
	Selects    map[string]string
	Clicked    []string
	Followed   []string
	SavedPages []string
	CloseCount int

	calendarCalls int
	urlCalls      int
}

var _ browser.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{
		Texts:         map[string]string{},
		Missing:       map[string]bool{},
		Filled:        map[string]string{},
		Selects:       map[string]string{},
		FollowErrs:    map[string]error{},
		OptionLinks:   map[int]string{},
		ScreenshotB64: "ZmFrZQ==",
	}
}

func (d *Driver) Open(url string) error {
	d.Opened = append(d.Opened, url)
	return nil
}

func (d *Driver) Fill(id, text string) error {
	d.Filled[id] = text
	return nil
}

func (d *Driver) SelectOption(id, value string) error {
	d.Selects[id] = value
	return nil
}

func (d *Driver) Click(id string) (bool, error) {
	d.Clicked = append(d.Clicked, id)
	if d.Missing[id] {
		return false, nil
	}
	return true, nil
}

func (d *Driver) Text(id string) (string, error) {
	t, ok := d.Texts[id]
	if !ok {
		return "", fmt.Errorf("%w: #%s", browser.ErrElementNotFound, id)
	}
	return t, nil
}

func (d *Driver) BodyText() (string, error) {
	return d.Body, nil
}

func (d *Driver) Exists(id string) bool {
	_, ok := d.Texts[id]
	return ok
}

func (d *Driver) Calendar(string) (browser.Calendar, error) {
	i := d.calendarCalls
	if i >= len(d.Calendars) {
		i = len(d.Calendars) - 1
	}
	d.calendarCalls++
	if i < 0 {
		return browser.Calendar{}, fmt.Errorf("%w: calendar", browser.ErrElementNotFound)
	}
	if i < len(d.CalendarErrs) && d.CalendarErrs[i] != nil {
		return browser.Calendar{}, d.CalendarErrs[i]
	}
	return d.Calendars[i], nil
}

func (d *Driver) FollowLink(link string) error {
	d.Followed = append(d.Followed, link)
	return d.FollowErrs[link]
}

func (d *Driver) PickFirstWindow(id string) ([]string, error) {
	if d.WindowErr != nil {
		return nil, d.WindowErr
	}
	return d.WindowLabels, nil
}

func (d *Driver) OptionLink(id string, index int) (string, error) {
	link, ok := d.OptionLinks[index]
	if !ok {
		return "", fmt.Errorf("%w: option %d", browser.ErrElementNotFound, index)
	}
	return link, nil
}

func (d *Driver) ClickOption(id string, index int) error {
	d.Clicked = append(d.Clicked, fmt.Sprintf("%s[%d]", id, index))
	return nil
}

func (d *Driver) Screenshot(id string, crop bool) (string, error) {
	d.Crops = append(d.Crops, crop)
	if d.ScreenshotErr != nil {
		return "", d.ScreenshotErr
	}
	return d.ScreenshotB64, nil
}

func (d *Driver) CurrentURL() (string, error) {
	if len(d.URLs) == 0 {
		return d.URL, nil
	}
	i := d.urlCalls
	if i >= len(d.URLs) {
		i = len(d.URLs) - 1
	}
	d.urlCalls++
	return d.URLs[i], nil
}

func (d *Driver) SavePage(prefix string) error {
	d.SavedPages = append(d.SavedPages, prefix)
	return nil
}

func (d *Driver) Close() {
	d.CloseCount++
}
