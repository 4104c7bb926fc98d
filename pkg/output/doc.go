// Package output writes prerendered files.
//
// A Sink receives each file once, under a slash-separated path relative
// to the output root, e.g. "/movie/42/index.html". DirSink writes to the
// local filesystem, S3Sink to an S3 bucket and MemorySink keeps files in
// memory for tests. Failed writes are not retried.
package output
