package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/scholarfind/internal/selection"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerから元のWriterを参照できるようにする。
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// identityRecorder は内側のミドルウェアが確定したidentityを外側のログへ渡す。
type identityRecorder struct {
	id selection.Identity
}

type identityRecorderKey struct{}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_idまたはdevice_idを含む。
// ステータスが5xxならERROR、4xxならWARNで出力する。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			idRec := &identityRecorder{}
			if id, ok := selection.IdentityFromContext(r.Context()); ok {
				idRec.id = id
			}
			ctx := contextWithIdentityRecorder(r.Context(), idRec)

			next.ServeHTTP(rec, r.WithContext(ctx))

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/float64(time.Millisecond)),
			}
			switch {
			case idRec.id.Authenticated():
				args = append(args, slog.String("user_id", idRec.id.UserID))
			case idRec.id.Anonymous():
				args = append(args, slog.String("device_id", idRec.id.DeviceID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

func contextWithIdentityRecorder(ctx context.Context, rec *identityRecorder) context.Context {
	return context.WithValue(ctx, identityRecorderKey{}, rec)
}

// attachIdentity はidentityをコンテキストに格納し、ログ用にも記録する。
func attachIdentity(ctx context.Context, id selection.Identity) context.Context {
	if rec, ok := ctx.Value(identityRecorderKey{}).(*identityRecorder); ok {
		rec.id = id
	}
	return selection.WithIdentity(ctx, id)
}
