package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

// headers whose values hold the session, dumps may be shared when debugging
var sessionHeaders = []string{"cookie", "set-cookie", "authorization"}

// MaxDumpBody bounds how much of a response body a dump keeps. Order pages embed
// megabytes of script.
const MaxDumpBody = 512 * 1024

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		redact := slices.Contains(sessionHeaders, strings.ToLower(k))
		for _, v := range headers[k] {
			if redact {
				v = "<redacted>"
			}
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func requestBody(req *http.Request) string {
	if req == nil || req.Body == nil || req.Body == http.NoBody {
		return "<NO BODY>"
	}
	if req.GetBody == nil {
		return "<NO BODY AVAILABLE>"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	if body == nil {
		return "<NO BODY>"
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(contents)
}

func truncated(body []byte) string {
	if len(body) <= MaxDumpBody {
		return string(body)
	}
	return fmt.Sprintf("%s\n<TRUNCATED %d BYTES>", body[:MaxDumpBody], len(body)-MaxDumpBody)
}

// formatHttpMessage renders a request/response pair as:
//
//	---- REQUEST ----
//
//	<method> <url>
//
//	<headers>
//
//	<body>
//
//	---- RESPONSE ----
//
//	<status> <final url>
//	...
func formatHttpMessage(res *resty.Response) string {
	var out strings.Builder

	out.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		writeHeaders(&out, res.Request.RawRequest.Header)
	}
	out.WriteString("\n")
	out.WriteString(requestBody(res.Request.RawRequest))

	finalUrl := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL.String()
	}
	out.WriteString("\n\n---- RESPONSE ----\n\n")
	fmt.Fprintf(&out, "%d %s\n\n", res.StatusCode(), finalUrl)
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(truncated(res.Body()))

	return out.String()
}
