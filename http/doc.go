// Package http provides the HTTP server for the plume feed API.
//
// All routes live under /api and speak JSON. Error responses use a uniform
// {msg, errors?} envelope; the status code follows the error kind raised by
// the service layer. Mutating routes require a bearer token issued by
// signup or login.
//
// Create a handler with HandlerConfig:
//
//	handler := http.NewHandler(&http.HandlerConfig{CORS: corsCfg}, service)
//	http.ListenAndServe(":8080", handler.Router())
//
// The service parameter must implement the Service interface; in production
// that is *plume.Service.
package http
