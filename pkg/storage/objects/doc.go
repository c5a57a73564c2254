// Package objects stores policy documents in an S3-compatible bucket.
//
// Uploads are keyed by DocumentKey and downloads go through presigned URLs,
// so the API never streams document contents back to browsers itself.
package objects
