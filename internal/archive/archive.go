// Package archive uploads finalized requester recordings to object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/supabase-community/supabase-go"

	"github.com/chadiek/interview-coach/internal/device"
)

// Config selects the Supabase project and bucket.
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

type uploader interface {
	upload(bucket, key string, r io.Reader) error
}

type supabaseUploader struct{ client *supabase.Client }

func (u supabaseUploader) upload(bucket, key string, r io.Reader) error {
	_, err := u.client.Storage.UploadFile(bucket, key, r)
	return err
}

// Supabase stores recordings under sessions/<session>/<name>.wav.
type Supabase struct {
	up     uploader
	bucket string
}

// New creates a Supabase-backed archive.
func New(cfg Config) (*Supabase, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY and SUPABASE_BUCKET are required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{up: supabaseUploader{client: client}, bucket: cfg.Bucket}, nil
}

// Key returns the object key for a recording.
func Key(sessionID, name string) string {
	return path.Join("sessions", sessionID, name+".wav")
}

// Save uploads blob and returns its object key. The storage client has no
// context support, so cancellation is only checked before the upload.
func (s *Supabase) Save(ctx context.Context, sessionID, name string, blob device.AudioBlob) (string, error) {
	if blob.Empty() {
		return "", fmt.Errorf("archive: empty recording")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := Key(sessionID, name)
	if err := s.up.upload(s.bucket, key, bytes.NewReader(blob.Data)); err != nil {
		return "", fmt.Errorf("failed to upload to Supabase: %w", err)
	}
	return key, nil
}
