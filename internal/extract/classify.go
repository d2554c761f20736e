package extract

import (
	"net/url"
	"orderexport/lib/htmlutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StorePurchaseParam is the query flag the order pages use for in-store receipts.
const StorePurchaseParam = "storePurchase"

// HasStorePurchaseFlag reports whether link carries storePurchase=true.
func HasStorePurchaseFlag(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return strings.Contains(link, StorePurchaseParam+"=true")
	}
	v := strings.ToLower(parsed.Query().Get(StorePurchaseParam))
	return v == "true" || v == "1"
}

// MainText is the visible text of the page's <main> element, or of <body> when the page
// has none.
func MainText(doc *goquery.Document) string {
	main := doc.Find("main").First()
	if main.Length() == 0 {
		main = doc.Find("body").First()
	}
	if main.Length() == 0 {
		main = doc.Selection
	}
	return htmlutil.VisibleText(main)
}

// IsStorePurchase classifies a page as an in-store receipt. The URL flag is checked first
// then the page text is scanned for a transaction code. doc may be nil.
func IsStorePurchase(pageURL string, doc *goquery.Document) bool {
	if pageURL != "" && HasStorePurchaseFlag(pageURL) {
		return true
	}
	if doc == nil {
		return false
	}
	return transactionCodeRegex.MatchString(MainText(doc))
}
