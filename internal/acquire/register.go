package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/example/visit-scheduler/internal/browser"
	"github.com/example/visit-scheduler/internal/countries"
	"github.com/example/visit-scheduler/internal/identity"
)

// Registration-flow element ids. The consent page uses bare ids, the
// personal-data form the usual ctl00 prefix.
const (
	idConsent     = "Checkbox"
	idConsent2    = "Checkbox2"
	idConsentNext = "ButtonNext"
	idReasons     = "reasons"

	idFormSurname    = "ctl00_MainContent_txtFam"
	idFormName       = "ctl00_MainContent_txtIm"
	idFormPatronymic = "ctl00_MainContent_txtOt"
	idFormPhone      = "ctl00_MainContent_txtTel"
	idFormEmail      = "ctl00_MainContent_txtEmail"
	idFormBirthDay   = "ctl00_MainContent_DDL_Day"
	idFormBirthMonth = "ctl00_MainContent_DDL_Month"
	idFormBirthYear  = "ctl00_MainContent_TextBox_Year"
	idFormGender     = "ctl00_MainContent_DDL_Mr"

	idHyperNext    = "ctl00_MainContent_HyperLinkNext"
	idPassportTick = "ctl00_MainContent_CheckBoxID"
	idQueueTick    = "ctl00_MainContent_CheckBoxList1_0"
	idQueueSubmit  = "ctl00_MainContent_ButtonQueue"
)

// RegisterOutcome carries the status panel shown after registration; the
// order number and save code are embedded in its text.
type RegisterOutcome struct {
	CentralPanel string
}

// RegisterOrder creates a fresh order for the given applicant and returns the
// confirmation panel text. Runs under the same retry policy as acquisition.
func (a *Acquirer) RegisterOrder(ctx context.Context, countryID int, p identity.Person) (RegisterOutcome, error) {
	country, err := a.Registry.Get(countryID)
	if err != nil {
		return RegisterOutcome{}, err
	}

	var out RegisterOutcome
	_, err = a.withRetry(ctx, func() (Outcome, error) {
		var err error
		out, err = a.registerOnce(ctx, country, p)
		return Outcome{}, err
	})
	return out, err
}

func (a *Acquirer) registerOnce(ctx context.Context, country countries.Country, p identity.Person) (RegisterOutcome, error) {
	d, err := a.NewSession()
	if err != nil {
		return RegisterOutcome{}, fmt.Errorf("open session: %w", err)
	}
	defer d.Close()

	log := a.log().With(slog.String("country", country.Name))

	if err := d.Open(country.RegisterURL()); err != nil {
		return RegisterOutcome{}, err
	}

	if err := a.consent(d); err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}

	option := country.RegisterOption(a.rand())

	url, err := d.CurrentURL()
	if err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}
	previsitor := strings.Contains(strings.ToLower(url), "previsitor.aspx")
	if previsitor {
		// Reason is chosen up front; a second consent page follows.
		if err := d.ClickOption(idReasons, option); err != nil {
			return RegisterOutcome{}, a.structural(d, err)
		}
		if err := a.consent(d); err != nil {
			return RegisterOutcome{}, a.structural(d, err)
		}
	}

	if url, err = d.CurrentURL(); err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}
	if !strings.Contains(strings.ToLower(url), "visitor.aspx") {
		return RegisterOutcome{}, a.structural(d, fmt.Errorf("unexpected page after consent: %s", url))
	}

	if err := a.fillApplicant(d, p); err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}

	if err := a.solveCaptcha(ctx, d, country.DarkCaptcha); err != nil {
		return RegisterOutcome{}, a.classifyRun(d, err)
	}
	if err := mustClick(d, idSubmit); err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}
	if d.Exists(idLoginErr) {
		return RegisterOutcome{}, ErrLoginAuth
	}

	if err := mustClick(d, idHyperNext); err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}

	if !previsitor {
		// Reason is chosen after the form here, via the entry's plain href.
		href, err := d.OptionLink(idReasons, option)
		if err != nil {
			return RegisterOutcome{}, a.structural(d, err)
		}
		if err := d.FollowLink(href); err != nil {
			return RegisterOutcome{}, a.structural(d, err)
		}
	}

	// Two passport-confirmation pages, identical controls.
	for i := 0; i < 2; i++ {
		if err := mustClick(d, idPassportTick); err != nil {
			return RegisterOutcome{}, a.structural(d, err)
		}
		if err := mustClick(d, idSubmit); err != nil {
			return RegisterOutcome{}, a.structural(d, err)
		}
	}

	if err := mustClick(d, idQueueTick); err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}
	if err := mustClick(d, idQueueSubmit); err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}

	panel, err := d.Text(idCentralPanel)
	if err != nil {
		return RegisterOutcome{}, a.structural(d, err)
	}

	log.Info("order registered", slog.String("applicant", p.Surname))
	return RegisterOutcome{CentralPanel: panel}, nil
}

// consent ticks the agreement boxes and advances. The second box is only
// present on some portals.
func (a *Acquirer) consent(d browser.Driver) error {
	if err := mustClick(d, idConsent); err != nil {
		return err
	}
	if _, err := d.Click(idConsent2); err != nil {
		return err
	}
	return mustClick(d, idConsentNext)
}

func (a *Acquirer) fillApplicant(d browser.Driver, p identity.Person) error {
	fills := []struct{ id, text string }{
		{idFormSurname, p.Surname},
		{idFormName, p.Name},
		{idFormPatronymic, p.Patronymic},
		{idFormPhone, p.Phone},
		{idFormEmail, p.Email},
	}
	for _, f := range fills {
		if err := d.Fill(f.id, f.text); err != nil {
			return err
		}
	}

	if err := d.SelectOption(idFormBirthDay, pad2(p.BirthDay)); err != nil {
		return err
	}
	if err := d.SelectOption(idFormBirthMonth, pad2(p.BirthMonth)); err != nil {
		return err
	}
	if err := d.Fill(idFormBirthYear, strconv.Itoa(p.BirthYear)); err != nil {
		return err
	}
	return d.SelectOption(idFormGender, p.Gender)
}

// mustClick treats an absent element as an error, unlike Driver.Click.
func mustClick(d browser.Driver, id string) error {
	found, err := d.Click(id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("click %s: %w", id, browser.ErrElementNotFound)
	}
	return nil
}

func pad2(n int) string {
	return fmt.Sprintf("%02d", n)
}
