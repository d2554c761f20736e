package telemetry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// headers that carry the retailer session and must never reach a span
var redactedHeaders = map[string]bool{
	"cookie":        true,
	"set-cookie":    true,
	"authorization": true,
}

// InstrumentResty traces every request made by client with a tracer of the given name.
func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), "http "+req.Method)
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		finishSpan(res.Request, res, nil)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		finishSpan(req, nil, err)
	})
}

func headerAttributes(prefix string, headers http.Header) []attribute.KeyValue {
	var out []attribute.KeyValue
	for header, values := range headers {
		key := fmt.Sprintf("%s/header: %s", prefix, header)
		if redactedHeaders[strings.ToLower(header)] {
			out = append(out, attribute.String(key, "<redacted>"))
			continue
		}
		if len(values) == 1 {
			out = append(out, attribute.String(key, values[0]))
			continue
		}
		for i, v := range values {
			out = append(out, attribute.String(fmt.Sprintf("%s (%d)", key, i), v))
		}
	}
	return out
}

// finishSpan ends the span started for req, either with its response or with the
// transport error that prevented one.
func finishSpan(req *resty.Request, res *resty.Response, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	// the raw request only exists once resty has sent it
	if req.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	}
	span.SetAttributes(headerAttributes("request", req.Header)...)
	span.SetAttributes(attribute.String("orderexport.endpoint", req.URL))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	span.SetAttributes(headerAttributes("response", res.Header())...)
	span.SetAttributes(attribute.Int("response/size", len(res.Body())))
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}
}
