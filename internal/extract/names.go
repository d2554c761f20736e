package extract

import (
	"regexp"
	"unicode/utf8"
)

const (
	minProductNameLength = 5
	maxProductNameLength = 200

	minAltTextLength = 10
	maxAltTextLength = 300
)

// text that shows up next to products on order pages but is never a product
var nonProductPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:sub|order |estimated |grand )?total\b[\s:$\d.,-]*$|\b(?:subtotal|order total|estimated total|grand total)\b`),
	regexp.MustCompile(`(?i)^(?:estimated\s+)?tax(?:es)?\b`),
	regexp.MustCompile(`(?i)^(?:delivered|arriving|preparing|shipped|in transit|cancell?ed|returned|refunded|picked up|ready for pickup)\b`),
	regexp.MustCompile(`(?i)\bstore purchase\b`),
	regexp.MustCompile(`TC#`),
	regexp.MustCompile(`(?i)\b(?:ST|OP|TE|TR)#\s*\d`),
	regexp.MustCompile(`(?i)\b(?:visa|master\s?card|amex|american express|discover|paypal|affirm|ebt|gift card|walmart pay|capital one)\b.*(?:\*{2,}|ending in|[x•]{2,}\s?\d{2,4})`),
	regexp.MustCompile(`\*{3,}\s?\d{2,4}`),
	regexp.MustCompile(`(?i)^payment(?: method)?s?\b`),
	regexp.MustCompile(`(?i)\b(?:view|track|start a|request a?|print)\s+(?:order|details|return|refund|package|shipment|receipt)s?\b`),
	regexp.MustCompile(`(?i)^(?:help|contact us|customer service|need help|get help)\b`),
	regexp.MustCompile(`(?i)\breturn (?:policy|window|eligible|by|through)\b`),
	regexp.MustCompile(`(?i)^(?:qty|quantity)\b`),
	regexp.MustCompile(`(?i)^(?:associate discount|driver tip|delivery fee|express fee|bag fee|savings|you saved|discounts?)\b`),
	regexp.MustCompile(`(?i)^(?:order|order #|order number|order date|order placed|order details)\b`),
	regexp.MustCompile(`(?i)^(?:ship to|shipping(?: address)?|delivery (?:address|instructions)|pickup (?:location|address)|billing)\b`),
	regexp.MustCompile(`(?i)\b(?:change|edit|cancel)\s+(?:items?|order|address|delivery)\b`),
	regexp.MustCompile(`(?i)^(?:write a review|leave a review|rate (?:this|your)|review)\b`),
	regexp.MustCompile(`(?i)^(?:receipt|print receipt|download receipt|view receipt)\b`),
	regexp.MustCompile(`(?i)^(?:thank you for|thanks for)\b`),
	regexp.MustCompile(`(?i)^\d+\s+items?\b`),
	regexp.MustCompile(`(?i)^(?:items?|substitutions?|original item)\b`),
	regexp.MustCompile(`(?i)^(?:terms|privacy|cookie|do not sell|your privacy choices)\b`),
	regexp.MustCompile(`(?i)^(?:cashier|register|terminal)\b`),
	regexp.MustCompile(`(?i)\b(?:change due|cash tend|debit tend|credit tend|approval\s*#|ref\s*#|aid\s+[a-f0-9]{6,})`),
	regexp.MustCompile(`(?i)^(?:walmart(?:\.com)?\+?|sam'?s club)$`),
	regexp.MustCompile(`(?i)^(?:see all|show more|show less|load more|back to|go to)\b`),
	regexp.MustCompile(`(?i)^(?:sold and shipped by|sold by|fulfilled by|shipped by)\b`),
	regexp.MustCompile(`(?i)^\$?\s?[\d,.]+$`),
	regexp.MustCompile(`(?i)^(?:free|n/a|none|unavailable|out of stock)$`),
}

// image alt texts that belong to the page chrome rather than a product
var nonProductAltPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:logo|icon|badge|avatar|arrow|chevron|spark|banner|placeholder|spinner|loading)\b`),
	regexp.MustCompile(`(?i)\b(?:rating|stars?|out of 5|reviews?)\b`),
	regexp.MustCompile(`(?i)\b(?:privacy|cookie|choices|advertisement|sponsored)\b`),
	regexp.MustCompile(`(?i)^(?:walmart|walmart\+|walmart\.com|sam'?s club|close|menu|profile|account)\b`),
}

// IsValidProductName rejects text that is too short/long or is known to be page chrome.
func IsValidProductName(name string) bool {
	length := utf8.RuneCountInString(name)
	if length < minProductNameLength || length > maxProductNameLength {
		return false
	}
	for _, re := range nonProductPatterns {
		if re.MatchString(name) {
			return false
		}
	}
	return true
}

// looksLikeProductAlt is the image-alt specific filter, applied before IsValidProductName.
func looksLikeProductAlt(alt string) bool {
	length := utf8.RuneCountInString(alt)
	if length < minAltTextLength || length > maxAltTextLength {
		return false
	}
	for _, re := range nonProductAltPatterns {
		if re.MatchString(alt) {
			return false
		}
	}
	return true
}
