package orders

import (
	"fmt"
	"regexp"
)

// Order is one tracked appointment request on a portal.
type Order struct {
	OrderNumber  int64
	SaveCode     string
	CountryID    int
	TimeForVisit string
	IfAccepted   bool
}

// Resolved reports whether a visit time has been captured. A resolved order
// is done; the monitor skips it.
func (o Order) Resolved() bool {
	return o.TimeForVisit != ""
}

func (o Order) Validate() error {
	if o.OrderNumber <= 0 {
		return fmt.Errorf("order_number required")
	}
	if o.SaveCode == "" {
		return fmt.Errorf("save_code required")
	}
	if o.CountryID <= 0 {
		return fmt.Errorf("country_id required")
	}
	return nil
}

var (
	visitDateRe = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4})`)
	visitTimeRe = regexp.MustCompile(`(\d{2}:\d{2})`)

	regNumberRe = regexp.MustCompile(`Номер заявки\s+-\s+(\d+)`)
	regCodeRe   = regexp.MustCompile(`Защитный код\s+-\s+([A-Z0-9]+)`)
)

// ExtractVisit pulls the DD.MM.YYYY date and HH:MM time tokens out of the
// free-form status text a confirmed visit leaves behind.
func ExtractVisit(text string) (date, tm string, err error) {
	dm := visitDateRe.FindStringSubmatch(text)
	tv := visitTimeRe.FindStringSubmatch(text)
	if dm == nil || tv == nil {
		return "", "", fmt.Errorf("orders: no visit date/time in %q", text)
	}
	return dm[1], tv[1], nil
}

// ExtractRegistration pulls the order number and save code out of the status
// text shown after a successful registration.
func ExtractRegistration(text string) (orderNumber int64, saveCode string, err error) {
	nm := regNumberRe.FindStringSubmatch(text)
	if nm == nil {
		return 0, "", fmt.Errorf("orders: no order number in registration text")
	}
	cm := regCodeRe.FindStringSubmatch(text)
	if cm == nil {
		return 0, "", fmt.Errorf("orders: no save code in registration text")
	}
	var n int64
	if _, err := fmt.Sscan(nm[1], &n); err != nil {
		return 0, "", fmt.Errorf("orders: bad order number %q", nm[1])
	}
	return n, cm[1], nil
}
