package obs

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shipquote/internal/common"
)

// Recoverer turns a handler panic into a logged 500 with a JSON error body.
// The request scoped logger from RequestLogger is preferred when present.
type Recoverer struct {
	Logger zerolog.Logger
}

func (rc Recoverer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger := zerolog.Ctx(r.Context())
			if logger.GetLevel() == zerolog.Disabled {
				logger = &rc.Logger
			}
			logger.Error().
				Interface("panic", rec).
				Str("request_id", middleware.GetReqID(r.Context())).
				Bytes("stack", debug.Stack()).
				Msg("http_panic")

			if r.Header.Get("Connection") != "Upgrade" {
				common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
