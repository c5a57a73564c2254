// Package api serves the portal's JSON HTTP API.
//
// Routes are grouped by audience:
//
//	/health, /health/live, /health/ready, /metrics   unauthenticated
//	/api/admin/...                                   admin profile required, rate limited
//	/api/me/...                                      caller's own client record and policies
//
// The admin surface covers orphan profile reconciliation
// (POST /api/admin/fix-orphan-profiles), clients, policies and policy documents. Errors
// are always written as {"error": message}: validation failures answer 400, unknown
// resources 404, unique violations 409, missing or invalid tokens 401 and missing roles
// 403.
package api
