// Package paysdktest provides a fake payments API for tests.
//
// A [Server] issues client credential tokens, serves every endpoint in the
// request catalog and records the calls it receives:
//
//	srv := paysdktest.New(paysdktest.WithCredentials("id", "secret"))
//	defer srv.Close()
//
//	c, err := paysdk.Configure(srv.Config())
//	srv.Stub("payments.sale.get", http.StatusOK, sale)
//
// Catalog endpoints require a bearer token issued by the server. Responses
// use the API's error shape, so clients see the same failures they would
// against the sandbox.
package paysdktest
