package media

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	publicID string
	data     []byte
}

func (f *fakeUploader) Upload(ctx context.Context, publicID string, data []byte) (string, error) {
	f.publicID = publicID
	f.data = data
	return "https://res.cloudinary.com/demo/image/upload/venues/" + publicID + ".jpg", nil
}

func TestImages_Placeholder(t *testing.T) {
	img, err := NewImages("takjil", nil)
	require.NoError(t, err)

	a := img.Placeholder()
	b := img.Placeholder()
	assert.Regexp(t, regexp.MustCompile(`^https://picsum\.photos/seed/[A-Za-z0-9]{8,}/800/450$`), a)
	assert.NotEqual(t, a, b)
}

func TestImages_Upload(t *testing.T) {
	t.Run("without uploader", func(t *testing.T) {
		img, err := NewImages("takjil", nil)
		require.NoError(t, err)
		_, err = img.Upload(context.Background(), []byte{1})
		assert.ErrorIs(t, err, ErrNoUploader)
	})

	t.Run("with uploader", func(t *testing.T) {
		up := &fakeUploader{}
		img, err := NewImages("takjil", up)
		require.NoError(t, err)

		url, err := img.Upload(context.Background(), []byte("jpeg"))
		require.NoError(t, err)
		assert.Contains(t, url, "/venues/venue_")
		assert.Equal(t, []byte("jpeg"), up.data)
		assert.Regexp(t, `^venue_[A-Za-z0-9]+$`, up.publicID)
	})
}
