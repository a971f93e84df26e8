package source

import (
	"context"
	"io"
	"strings"
)

// SchemeS3 is the reference scheme of uploaded CSV objects.
const SchemeS3 = "s3"

// ObjectReader is the subset of object storage a CSV opener needs.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectOpener opens s3:// references as CSV sources.
type ObjectOpener struct {
	store ObjectReader
}

// NewObjectOpener creates an opener reading CSV objects from store.
func NewObjectOpener(store ObjectReader) *ObjectOpener {
	return &ObjectOpener{store: store}
}

// Open implements Opener.
func (o *ObjectOpener) Open(ctx context.Context, ref string, offset int) (Source, error) {
	key := strings.TrimPrefix(ref, SchemeS3+"://")
	body, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	src, err := NewCSV(body)
	if err != nil {
		_ = body.Close()
		return nil, err
	}
	if err := Skip(ctx, src, offset); err != nil {
		_ = src.Close()
		return nil, err
	}
	return src, nil
}

// ObjectRef returns the source reference of an object key.
func ObjectRef(key string) string {
	return SchemeS3 + "://" + key
}
