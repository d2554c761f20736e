package extract

import (
	"encoding/json"
	"orderexport/internal/order"
	"orderexport/lib/textutil"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const monthPattern = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`
const monthDatePattern = monthPattern + `\.?\s+\d{1,2},?\s+\d{4}`

var (
	// tried in order by ExtractOrderDate
	orderDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:order(?:ed)?\s+placed|placed\s+on|ordered\s+on|order\s+date)\s*:?\s*(` + monthDatePattern + `)`),
		regexp.MustCompile(`(?i)(` + monthDatePattern + `)\s+(?:order|purchase)`),
		regexp.MustCompile(`(?i)\b(` + monthDatePattern + `)`),
	}
	monthDateRegex   = regexp.MustCompile(`(?i)\b(` + monthDatePattern + `)`)
	numericDateRegex = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/(?:\d{4}|\d{2}))\b`)
	monthDotRegex    = regexp.MustCompile(`^([A-Za-z]{3,9})\.`)
)

// ExtractOrderDate finds an order date in page text, returning order.UnknownDate on a miss.
func ExtractOrderDate(text string) string {
	for _, re := range orderDatePatterns {
		groups := re.FindStringSubmatch(text)
		if len(groups) >= 2 {
			return textutil.CollapseSpace(groups[1])
		}
	}
	return order.UnknownDate
}

// ExtractMonthDate finds the first month-name date, then the first numeric date.
func ExtractMonthDate(text string) string {
	if groups := monthDateRegex.FindStringSubmatch(text); len(groups) >= 2 {
		return textutil.CollapseSpace(groups[1])
	}
	if groups := numericDateRegex.FindStringSubmatch(text); len(groups) >= 2 {
		return groups[1]
	}
	return order.UnknownDate
}

var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
}

// ParseOrderDate best-effort parses a display date string in loc (time.Local when nil).
func ParseOrderDate(s string, loc *time.Location) (time.Time, bool) {
	s = textutil.CollapseSpace(s)
	if s == "" || s == order.UnknownDate {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	s = monthDotRegex.ReplaceAllString(s, "$1")
	s = strings.Replace(s, "Sept ", "Sep ", 1)
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDisplayDate renders t the way the order pages do ("Jan 15, 2024").
func FormatDisplayDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// NormalizeDate turns machine dates (ISO timestamps) into display dates, keeps
// anything else as-is.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return order.UnknownDate
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05", "2006-01-02"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return FormatDisplayDate(t)
		}
	}
	return s
}

// PriceLabel is a compiled "<label> ... $<amount>" pattern.
type PriceLabel struct {
	Name string
	re   *regexp.Regexp
}

func newPriceLabel(name, label string) PriceLabel {
	return PriceLabel{
		Name: name,
		re:   regexp.MustCompile(`(?i)\b` + label + `\b[^$]{0,60}?(-?\s?\$\s?-?[\d,]+(?:\.\d{2})?)`),
	}
}

var (
	LabelSubtotal          = newPriceLabel("subtotal", `Subtotal`)
	LabelTax               = newPriceLabel("tax", `(?:Estimated\s+)?Tax(?:es)?`)
	LabelTotal             = newPriceLabel("total", `(?:Order\s+|Grand\s+)?Total`)
	LabelAssociateDiscount = newPriceLabel("associate discount", `Associate\s+discount`)
	LabelDriverTip         = newPriceLabel("driver tip", `Driver\s+tip`)
	LabelDeliveryFee       = newPriceLabel("delivery fee", `Delivery\s+fee`)
	LabelExpressFee        = newPriceLabel("express fee", `Express(?:\s+delivery)?\s+fee`)
)

var spaceRemover = strings.NewReplacer(" ", "", "\t", "", "\n", "")

// ExtractLabeledPrice returns the amount following label in text, as displayed, or "".
func ExtractLabeledPrice(text string, label PriceLabel) string {
	groups := label.re.FindStringSubmatch(text)
	if len(groups) < 2 {
		return ""
	}
	return spaceRemover.Replace(groups[1])
}

type statusTrigger struct {
	re      *regexp.Regexp
	display string
}

func trigger(pattern, display string) statusTrigger {
	return statusTrigger{re: regexp.MustCompile(`(?i)\b` + pattern + `\b`), display: display}
}

var (
	detailStatusTriggers = []statusTrigger{
		trigger(`cancell?ed`, "Canceled"),
		trigger(`delivered`, "Delivered"),
		trigger(`picked\s+up`, "Picked up"),
		trigger(`returned`, "Returned"),
		trigger(`refunded`, "Refunded"),
		trigger(`ready\s+for\s+pickup`, "Ready for pickup"),
		trigger(`arriving`, "Arriving"),
		trigger(`in\s+transit`, "In transit"),
		trigger(`shipped`, "Shipped"),
		trigger(`preparing`, "Preparing"),
	}
	listStatusTriggers = []statusTrigger{
		trigger(`delivered`, "Delivered"),
		trigger(`arriving`, "Arriving"),
		trigger(`preparing`, "Preparing"),
		trigger(`in\s+transit`, "In transit"),
		trigger(`store\s+purchase`, order.StatusStorePurchase),
	}
)

func matchStatus(text string, triggers []statusTrigger) string {
	for _, t := range triggers {
		if t.re.MatchString(text) {
			return t.display
		}
	}
	return order.StatusUnknown
}

// ExtractStatus checks an order page's text for status keywords, in priority order.
func ExtractStatus(text string) string {
	return matchStatus(text, detailStatusTriggers)
}

// ExtractListStatus is ExtractStatus with the smaller set of phrases shown on the order list.
func ExtractListStatus(text string) string {
	return matchStatus(text, listStatusTriggers)
}

var (
	quantityRegex       = regexp.MustCompile(`(?i)\b(?:Qty|Quantity)\s*:?\s*(\d{1,4})\b`)
	quantitySuffixRegex = regexp.MustCompile(`(?i),\s*quantity\s+(\d{1,4})\s*$`)
)

// ExtractQuantity finds "Qty N" in text, defaulting to 1.
func ExtractQuantity(text string) int {
	groups := quantityRegex.FindStringSubmatch(text)
	if len(groups) < 2 {
		return 1
	}
	n, err := strconv.Atoi(groups[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// SplitQuantitySuffix strips a trailing ", quantity N" from an image alt text.
func SplitQuantitySuffix(name string) (string, int) {
	groups := quantitySuffixRegex.FindStringSubmatchIndex(name)
	if groups == nil {
		return name, 1
	}
	n, err := strconv.Atoi(name[groups[2]:groups[3]])
	if err != nil || n < 1 {
		n = 1
	}
	return strings.TrimSpace(name[:groups[0]]), n
}

var transactionCodeRegex = regexp.MustCompile(`TC#[ \t]*(\d[\d \t-]*\d)`)

// ExtractTransactionCode returns the store receipt code as "TC# 1234-5678", or "".
func ExtractTransactionCode(text string) string {
	groups := transactionCodeRegex.FindStringSubmatch(text)
	if len(groups) < 2 {
		return ""
	}
	return "TC# " + textutil.CollapseSpace(groups[1])
}

// TransactionDigits strips a transaction code down to its digits, for use as an id.
func TransactionDigits(code string) string {
	var out strings.Builder
	for _, c := range code {
		if c >= '0' && c <= '9' {
			out.WriteRune(c)
		}
	}
	return out.String()
}

var (
	storeNameRegex    = regexp.MustCompile(`([A-Z][A-Za-z.'&-]*(?:[ \t]+[A-Z][A-Za-z.'&-]*){0,4}[ \t]+(?:Supercenter|Neighborhood Market|Supermarket))(?:[ \t]*#[ \t]*(\d+))?`)
	storeNumberRegex  = regexp.MustCompile(`\b(Store[ \t]*#[ \t]*\d+)`)
	storeAddressRegex = regexp.MustCompile(`\b(\d{1,6}[ \t]+[^\n,$]{3,60},?[ \t]*[^\n,$]{2,40},[ \t]*[A-Z]{2}[ \t]+\d{5}(?:-\d{4})?)`)
	storeCityRegex    = regexp.MustCompile(`([A-Z][A-Za-z .'-]{1,40},[ \t]*[A-Z]{2}[ \t]+\d{5}(?:-\d{4})?)`)
	purchasedAtRegex  = regexp.MustCompile(`(?i)purchased\s+at\s*:?\s*([^\n]{3,80})`)
)

// ExtractStoreLocation tries, in order, a named store format, a street/city/state/zip
// address and a "Purchased at" label.
func ExtractStoreLocation(text string) order.StoreLocation {
	var loc order.StoreLocation

	if groups := storeNameRegex.FindStringSubmatch(text); len(groups) >= 2 {
		loc.Name = textutil.CollapseSpace(groups[1])
		if len(groups) >= 3 && groups[2] != "" {
			loc.Name += " #" + groups[2]
		}
	} else if groups := storeNumberRegex.FindStringSubmatch(text); len(groups) >= 2 {
		loc.Name = textutil.CollapseSpace(groups[1])
	}

	if groups := storeAddressRegex.FindStringSubmatch(text); len(groups) >= 2 {
		loc.Address = textutil.CollapseSpace(groups[1])
	} else if groups := storeCityRegex.FindStringSubmatch(text); len(groups) >= 2 {
		loc.Address = textutil.CollapseSpace(groups[1])
	}

	if loc.Name == "" {
		if groups := purchasedAtRegex.FindStringSubmatch(text); len(groups) >= 2 {
			loc.Name = textutil.CollapseSpace(groups[1])
		}
	}

	return loc
}

// NormalizePrice turns the retailer's many price representations (number, "$1.23",
// "1.23", {value, amount, displayValue}) into a display string and a numeric value.
func NormalizePrice(v any) (string, decimal.Decimal, bool) {
	switch p := v.(type) {
	case nil:
		return "", decimal.Zero, false
	case float64:
		d := decimal.NewFromFloat(p)
		return order.FormatMoney(d), d, true
	case int:
		d := decimal.NewFromInt(int64(p))
		return order.FormatMoney(d), d, true
	case int64:
		d := decimal.NewFromInt(p)
		return order.FormatMoney(d), d, true
	case json.Number:
		d, err := decimal.NewFromString(p.String())
		if err != nil {
			return "", decimal.Zero, false
		}
		return order.FormatMoney(d), d, true
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return "", decimal.Zero, false
		}
		d, ok := order.ParseMoney(s)
		if !ok {
			return "", decimal.Zero, false
		}
		if strings.HasPrefix(s, "$") || strings.HasPrefix(s, "-$") {
			return s, d, true
		}
		return order.FormatMoney(d), d, true
	case map[string]any:
		display, _ := p["displayValue"].(string)
		display = strings.TrimSpace(display)
		for _, key := range []string{"value", "amount", "price"} {
			raw, ok := p[key]
			if !ok {
				continue
			}
			if _, isMap := raw.(map[string]any); isMap {
				continue
			}
			formatted, d, ok := NormalizePrice(raw)
			if !ok {
				continue
			}
			if display == "" {
				display = formatted
			}
			return display, d, true
		}
		if display != "" {
			d, ok := order.ParseMoney(display)
			return display, d, ok
		}
		return "", decimal.Zero, false
	default:
		return "", decimal.Zero, false
	}
}
