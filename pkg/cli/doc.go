// Package cli implements portal-admin, the operator command line of the policy portal.
//
// # Commands
//
// fix-orphans: reconcile clients that have no access profile
//
//	portal-admin fix-orphans -dry-run=false -limit=50 -send-emails=true
//
// The JSON result (summary and per-client details) is printed to stdout; progress is
// logged as JSON to stderr. -dry-run defaults to true.
//
// expire-policies: run the policy expiry pass once
//
//	portal-admin expire-policies
//
// migrate: apply pending database migrations
//
//	portal-admin migrate
//
// # Configuration
//
// Commands read the same PORTAL_* environment variables (or PORTAL_CONFIG_FILE) as the
// API server and call the identity provider with the service key.
package cli
