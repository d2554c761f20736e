package telemetry

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderAttributesRedactsSession(t *testing.T) {
	headers := http.Header{}
	headers.Set("Cookie", "session=secret")
	headers.Set("Accept", "text/html")
	headers.Add("Vary", "Accept")
	headers.Add("Vary", "Cookie")

	values := map[string]string{}
	for _, a := range headerAttributes("request", headers) {
		values[string(a.Key)] = a.Value.AsString()
	}
	require.Equal(t, map[string]string{
		"request/header: Cookie":   "<redacted>",
		"request/header: Accept":   "text/html",
		"request/header: Vary (0)": "Accept",
		"request/header: Vary (1)": "Cookie",
	}, values)
}
