package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"folio/internal/services"
)

// newJSONHandler writes one JSON object per record. Durations become
// "<key>_ms" integers and errors become {"message", "kind"} objects so log
// processors can aggregate download times and failure kinds.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
				return attr
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
				return attr
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
				return attr
			}
			switch attr.Value.Kind() {
			case slog.KindDuration:
				return slog.Int64(attr.Key+"_ms", attr.Value.Duration().Milliseconds())
			case slog.KindAny:
				if err, ok := attr.Value.Any().(error); ok {
					return slog.Group(attr.Key,
						slog.String("message", err.Error()),
						slog.String("kind", services.Kind(err)),
					)
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}
