// Package metrics exposes Prometheus collectors for link, role and session
// activity, plus a fiber middleware counting HTTP requests.
//
// Labels are bounded: events and operations are fixed strings, results are
// "ok" or an error class, and the HTTP path label uses the registered route.
//
// # Usage
//
//	app.Use(metrics.Middleware())
//	app.Get("/metrics", metrics.Handler())
package metrics
