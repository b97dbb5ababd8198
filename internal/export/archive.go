package export

import (
	"context"
	"fmt"
	"os"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

// Archiver uploads an already-written export zip to a Supabase Storage
// bucket. It is optional: export_audit_packet works without one configured,
// and an upload failure never invalidates the local zip it already wrote.
type Archiver struct {
	client *supabase.Client
	bucket string
}

// NewArchiver builds a Supabase Storage archiver. url, serviceRoleKey, and
// bucket must all be non-empty; callers should check config.SupabaseConfig.
// Enabled() first and skip archival entirely when it is false.
func NewArchiver(url, serviceRoleKey, bucket string) (*Archiver, error) {
	client, err := supabase.NewClient(url, serviceRoleKey, &supabase.ClientOptions{
		Headers: map[string]string{"X-Client-Info": "compliance-navigator"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

// Upload streams localPath's contents to objectPath inside the configured
// bucket, overwriting any prior object at that path. ctx is accepted for
// symmetry with the caller's retry wrapper; the underlying client call is
// not itself cancellable.
func (a *Archiver) Upload(ctx context.Context, localPath, objectPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening export for upload: %w", err)
	}
	defer f.Close()

	upsert := true
	_, err = a.client.Storage.UploadFile(a.bucket, objectPath, f, storage_go.FileOptions{
		Upsert: &upsert,
	})
	if err != nil {
		return fmt.Errorf("uploading export to supabase storage: %w", err)
	}
	return nil
}
