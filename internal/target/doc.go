// Package target abstracts the sync root a run mirrors into.
//
// A Local target is a directory on an afero filesystem; files are published
// by renaming them out of the staging directory. A Bucket target is any
// gocloud.dev blob bucket (s3://, file://, mem://); files are
// published by uploading the staged copy.
package target
