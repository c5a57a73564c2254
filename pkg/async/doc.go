// Package async runs background tasks that must not take the process down.
//
// SafeGo bounds a task by a timeout, recovers panics and logs failures; the API server
// uses it for work that should not delay startup, such as the first policy expiry pass.
package async
