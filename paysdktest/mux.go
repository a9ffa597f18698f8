package paysdktest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// handler is a http.Handler that returns an error.
type handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// middleware defines a signature to chain handler together.
type middleware func(handler handler) handler

// router manages routing and middleware for the fake API.
type router struct {
	mux    *http.ServeMux
	mw     []middleware
	logger *slog.Logger
	tracer trace.Tracer
}

func (a *router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// handle registers h under "METHOD path", wrapped in mw and then the
// router's own middleware.
func (a *router) handle(method, path, endpoint string, h handler, mw ...middleware) {
	h = wrap(mw, h)
	h = wrap(a.mw, h)

	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.startSpan(w, r, endpoint)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			traceID = uuid.NewString()
		}

		v := values{
			TraceID:  traceID,
			Endpoint: endpoint,
			Now:      time.Now().UTC(),
		}

		r = r.WithContext(setValues(ctx, &v))

		if err := h(r.Context(), w, r); err != nil {
			a.logger.Error("paysdktest", "handle", err)
		}
	}

	a.mux.HandleFunc(fmt.Sprintf("%s %s", method, path), fn)
}

// startSpan adds a span for the request and writes the trace context into
// the response headers.
func (a *router) startSpan(w http.ResponseWriter, r *http.Request, endpoint string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ctx, span := a.tracer.Start(ctx, "paysdktest.handler",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("path", r.RequestURI),
			attribute.String("paysdk.endpoint", endpoint),
		),
	)

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

	return ctx, span
}

// wrap middleware around the handler and execute in order given.
func wrap(mw []middleware, h handler) handler {
	for _, mwFn := range slices.Backward(mw) {
		if mwFn != nil {
			h = mwFn(h)
		}
	}

	return h
}

type ctxKey int

const base ctxKey = 1

// values are shared across a request's middleware.
type values struct {
	TraceID    string
	Endpoint   string
	Now        time.Time
	StatusCode int
}

func setValues(ctx context.Context, v *values) context.Context {
	return context.WithValue(ctx, base, v)
}

func getValues(ctx context.Context) *values {
	v, ok := ctx.Value(base).(*values)
	if !ok {
		return &values{TraceID: uuid.Nil.String(), Now: time.Now()}
	}

	return v
}

// respondJSON to an HTTP request, setting the status code and body if any.
func respondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	getValues(ctx).StatusCode = statusCode

	if statusCode == http.StatusNoContent || data == nil {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}
