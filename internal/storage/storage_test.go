package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"front.jpg", "front.jpg"},
		{"my car photo.jpg", "my_car_photo.jpg"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"фото.png", "____.png"},
		{"a+b&c.jpeg", "a_b_c.jpeg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	path := ObjectPath("2025-03-14_10-00", "my photo.jpg", now)
	assert.Equal(t, "booking_photos/2025-03-14_10-00/1700000000000_my_photo.jpg", path)
}

func TestLocalStoreUpload(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "/uploads/")
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "booking_photos/k/1_a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/booking_photos/k/1_a.jpg", url)

	data, err := os.ReadFile(filepath.Join(root, "booking_photos", "k", "1_a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestLocalStoreUploadCancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Upload(ctx, "x/y.jpg", []byte("jpeg"), "image/jpeg")
	assert.Error(t, err)
}

func TestLocalStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewLocalStore(root, "/uploads")
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
