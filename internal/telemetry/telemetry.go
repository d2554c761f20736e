// Package telemetry is how components report what happened to them without knowing
// where the reports end up.
package telemetry

// API receives reports from components.
//
// note: fault injection point
type API interface {
	// ReportBroken reports that a component failed at something it should be able to do,
	// ex. a detail page that could not be fetched.
	//
	// `id` names the component and method, ex. `client.fetch-order-detail`. It is all
	// lowercase, with underscores inside a component name and dashes inside a method name.
	// The failure itself goes in params, usually as a wrapped error.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unusual that was tolerated, ex. a fallback that
	// had to be used. `id` follows the rules of ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports chatter that is only useful while developing.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a measurement taken now. Counts are points over time, not
	// increments.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every report of inner with a component namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI scopes inner under namespace. Scoping an already scoped API nests the
// namespaces, "export" inside "relay" reports as "relay/export: <id>".
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	if parent, ok := inner.(ScopedAPI); ok {
		return ScopedAPI{namespace: parent.namespace + "/" + namespace, inner: parent.inner}
	}
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
