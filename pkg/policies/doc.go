// Package policies runs the scheduled policy expiry pass: active policies whose end date
// is before today are marked expired.
//
//	job := policies.NewExpiryJob(store, metrics, logger)
//	if err := job.Start("@hourly"); err != nil { ... }
//	defer job.Stop()
package policies
