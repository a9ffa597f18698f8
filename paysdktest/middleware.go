package paysdktest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// logger logs the start and end of every request.
func logger(log *slog.Logger) middleware {
	m := func(h handler) handler {
		fn := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := getValues(ctx)

			path := r.URL.Path
			if r.URL.RawQuery != "" {
				path = fmt.Sprintf("%s?%s", path, r.URL.RawQuery)
			}

			log.Debug("request started", "method", r.Method, "path", path, "endpoint", v.Endpoint)

			err := h(ctx, w, r)

			log.Debug("request completed", "method", r.Method, "path", path, "endpoint", v.Endpoint, "statusCode", v.StatusCode, "since", time.Since(v.Now).String())

			return err
		}

		return fn
	}

	return m
}

// errs turns errors coming out of the call chain into API error bodies.
func errs(log *slog.Logger) middleware {
	m := func(h handler) handler {
		fn := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := h(ctx, w, r)
			if err == nil {
				return nil
			}

			if tokErr, ok := errors.AsType[*tokenError](err); ok {
				return respondJSON(ctx, w, tokErr.Code, tokErr)
			}

			apiErr, ok := errors.AsType[*APIError](err)
			if !ok {
				log.Error(err.Error(), "trace_id", getValues(ctx).TraceID)
				apiErr = NewError(http.StatusInternalServerError, "INTERNAL_SERVICE_ERROR", "An internal service error has occurred.")
			}

			cpy := *apiErr
			cpy.DebugID = getValues(ctx).TraceID

			return respondJSON(ctx, w, cpy.Code, &cpy)
		}

		return fn
	}

	return m
}

// panics recovers from panics if they occur.
func panics() middleware {
	m := func(h handler) handler {
		fn := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("PANIC [%v] TRACE[%s]", rec, string(debug.Stack()))
				}
			}()

			return h(ctx, w, r)
		}
		return fn
	}
	return m
}

// authenticate rejects calls without a live bearer token issued by s.
func (s *Server) authenticate() middleware {
	m := func(h handler) handler {
		fn := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || !s.validToken(tok) {
				return errAuthentication
			}

			return h(ctx, w, r)
		}
		return fn
	}
	return m
}

// record stores every call that reaches it, body included.
func (s *Server) record() middleware {
	m := func(h handler) handler {
		fn := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				return fmt.Errorf("reading body: %w", err)
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			s.mu.Lock()
			s.calls = append(s.calls, Call{
				Endpoint:   getValues(ctx).Endpoint,
				Method:     r.Method,
				RequestURI: r.RequestURI,
				Header:     r.Header.Clone(),
				Body:       body,
			})
			s.mu.Unlock()

			return h(ctx, w, r)
		}
		return fn
	}
	return m
}
