package telemetry

import (
	"fmt"
	"log/slog"
)

// SlogAPI writes reports to a slog logger, slog.Default() when Logger is nil.
type SlogAPI struct {
	Logger *slog.Logger
}

func (s SlogAPI) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// attrs turns report params into key/value pairs. Errors are logged under "err", the
// rest positionally.
func attrs(initial []any, params []any) []any {
	out := initial
	errCount := 0
	for i, p := range params {
		if err, ok := p.(error); ok {
			key := "err"
			if errCount > 0 {
				key = fmt.Sprintf("err.%d", errCount)
			}
			errCount++
			out = append(out, key, err.Error())
			continue
		}
		out = append(out, fmt.Sprintf("params.%d", i), p)
	}
	return out
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.logger().Error("broken component", attrs([]any{"id", id}, params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.logger().Warn("warning", attrs([]any{"id", id}, params)...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	s.logger().Debug(message, attrs(nil, params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.logger().Info("count", "id", id, "n", count)
}
