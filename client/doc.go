// Package client sends request descriptors to the REST API over [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options. Resolved
// configuration seeds the base URL, timeout, user agent, throttle and
// default headers:
//
//	opts, err := config.Build(configtree.Tree{"mode": "live"})
//	c, err := client.Build(
//		client.WithConfig(opts),
//		client.WithTokens(cache),
//	)
//
// # Making Calls
//
// Build a descriptor from the endpoint catalog and execute it with
// [Client.Do]:
//
//	d, err := request.SaleGet.Build(request.Params{"sale_id": id})
//	err = c.Do(ctx, d, http.StatusOK, client.WithDestination(&sale))
//
// Do fills in default headers, a bearer token from the cache and a
// PayPal-Request-Id for POST calls. A 401 response invalidates the cached
// token and, like a 403, is reported as [ErrAuthFailure].
//
// # Observability
//
// Calls are traced with the configured OpenTelemetry tracer, and the trace
// context is propagated in request headers. [NewMetrics] registers request
// counters and latency histograms on a Prometheus registerer.
package client
