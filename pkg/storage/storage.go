// Package storage moves objects between processing-state prefixes of a bucket.
package storage

import (
	"context"
	"strings"
)

// Object is a listed object.
type Object struct {
	Key  string
	Size int64
}

// Name returns the part of the key after the last "/".
func (o Object) Name() string {
	return BaseName(o.Key)
}

// ObjectStore is bound to a single bucket.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	// Move relocates src to dst. The source is gone once Move returns nil.
	Move(ctx context.Context, src, dst string) error
}

// BaseName returns the part of key after the last "/".
func BaseName(key string) string {
	return key[strings.LastIndex(key, "/")+1:]
}

// Files drops folder placeholders (the prefix itself or keys ending in "/")
// that consoles create when a "directory" is made.
func Files(prefix string, objects []Object) []Object {
	files := make([]Object, 0, len(objects))
	for _, o := range objects {
		if o.Key == prefix || strings.HasSuffix(o.Key, "/") {
			continue
		}
		files = append(files, o)
	}
	return files
}
