// Package api assembles the storygate HTTP API.
//
// Every request passes through the same chain: panic recovery, request ID,
// access logging, Prometheus metrics, session authentication, rate limiting
// and finally rbac.Guard, which evaluates the caller's ability once. Route
// handlers live in pkg/rbac and pkg/auth; this package only wires them.
//
//	srv := api.NewServer(api.Options{
//		Store:    store,
//		Sessions: sessions,
//		Redis:    redisClient,
//		Logger:   logger,
//		Metrics:  metrics,
//	})
//	http.ListenAndServe(":8080", srv)
package api
