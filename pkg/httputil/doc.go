// Package httputil provides the JSON response helpers, request parsing and
// common middleware shared by the portal's handlers.
//
// Every error response has the shape {"error": "<message>"}:
//
//	httputil.WriteForbidden(w, "admin role required")
//	httputil.WriteNotFoundError(w, "policy not found")
//
// Request bodies are decoded strictly and validated with go-playground/validator:
//
//	var req CreateClientRequest
//	if !httputil.DecodeAndValidate(w, r, s.validate, &req) {
//		return
//	}
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(origins),
//	)(router)
package httputil
