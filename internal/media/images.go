package media

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/speps/go-hashids/v2"
)

var ErrNoUploader = errors.New("image upload is not configured")

const placeholderURL = "https://picsum.photos/seed/%s/800/450"

// Uploader stores image bytes and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, publicID string, data []byte) (string, error)
}

// Images names and places venue images.
type Images struct {
	ids      *hashids.HashID
	uploader Uploader
	now      func() time.Time
}

// NewImages builds an image resolver. uploader may be nil, in which case
// only placeholders are available.
func NewImages(salt string, uploader Uploader) (*Images, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 8

	ids, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("hashids: %w", err)
	}

	return &Images{ids: ids, uploader: uploader, now: time.Now}, nil
}

// Seed returns a short unique name derived from the clock and a random
// suffix.
func (i *Images) Seed() string {
	seed, err := i.ids.EncodeInt64([]int64{i.now().UnixMilli(), rand.Int63n(1 << 30)})
	if err != nil {
		// both numbers are non-negative, so encoding cannot fail
		panic("hashids encode: " + err.Error())
	}
	return seed
}

// Placeholder returns a stock image URL for a venue without a photo.
func (i *Images) Placeholder() string {
	return fmt.Sprintf(placeholderURL, i.Seed())
}

func (i *Images) Upload(ctx context.Context, data []byte) (string, error) {
	if i.uploader == nil {
		return "", ErrNoUploader
	}
	return i.uploader.Upload(ctx, "venue_"+i.Seed(), data)
}
