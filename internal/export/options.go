package export

import (
	"encoding/json"
	"fmt"
	"orderexport/internal/order"
	"strconv"
	"strings"
)

// DateRange limits an export to orders placed within the last Days days. Zero means all
// orders. On the wire it is either a number of days or the string "all".
type DateRange struct {
	Days int
}

// AllDates is the DateRange that keeps every order.
var AllDates = DateRange{}

func (r DateRange) All() bool {
	return r.Days <= 0
}

func (r DateRange) String() string {
	if r.All() {
		return "all"
	}
	return strconv.Itoa(r.Days)
}

// ParseDateRange accepts "all" or a positive number of days.
func ParseDateRange(s string) (DateRange, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return AllDates, nil
	}
	days, err := strconv.Atoi(s)
	if err != nil || days < 0 {
		return DateRange{}, fmt.Errorf("invalid date range %q, want a number of days or \"all\"", s)
	}
	return DateRange{Days: days}, nil
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	if r.All() {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(r.Days)), nil
}

func (r *DateRange) UnmarshalJSON(b []byte) error {
	var days int
	if err := json.Unmarshal(b, &days); err == nil {
		*r = DateRange{Days: days}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date range must be a number or a string: %w", err)
	}
	parsed, err := ParseDateRange(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// TypeFilter restricts which order types end up in an export.
type TypeFilter string

const (
	FilterAll    TypeFilter = "all"
	FilterOnline TypeFilter = "online"
	FilterStore  TypeFilter = "store"
)

func ParseTypeFilter(s string) (TypeFilter, error) {
	switch TypeFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterOnline:
		return FilterOnline, nil
	case FilterStore:
		return FilterStore, nil
	}
	return "", fmt.Errorf("invalid order type filter %q, want all, online or store", s)
}

func (f TypeFilter) Matches(o order.Order) bool {
	switch f {
	case FilterOnline:
		return o.OrderType == order.TypeOnline
	case FilterStore:
		return o.OrderType == order.TypeStore
	default:
		return true
	}
}

// Options are chosen by the user for each run.
type Options struct {
	IncludeItems    bool       `json:"includeItems"`
	FetchItemPrices bool       `json:"fetchItemPrices"`
	AllPages        bool       `json:"allPages"`
	DateRange       DateRange  `json:"dateRange"`
	OrderTypeFilter TypeFilter `json:"orderTypeFilter"`
}

// Progress is emitted after every processed order. Percent is 0-100.
type Progress struct {
	Percent int    `json:"percent"`
	Label   string `json:"label,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
