package store

import (
	"context"
	"errors"

	"github.com/puppetworks/puppetstage/internal/model"
)

// ShowStore is the remote system of record for shows. The in-memory Show is
// a cache over it: writes are pushed optimistically and reads happen on
// load. Implementations stamp CreateTime/ModifyTime server-side.
type ShowStore interface {
	// NewShowID allocates an opaque identifier for a show that has not
	// been written yet.
	NewShowID() string

	GetShow(ctx context.Context, id string) (*model.ShowRecord, error)
	PutShow(ctx context.Context, rec *model.ShowRecord) error
	UpdateShow(ctx context.Context, id string, update model.ShowUpdate) error
	DeleteShow(ctx context.Context, id string) error

	// AppendEvent pushes an event onto the show's log and returns its
	// push ID. ClearEvents removes the whole log.
	AppendEvent(ctx context.Context, showID string, ev model.Event) (string, error)
	ClearEvents(ctx context.Context, showID string) error

	// Audio asset references (start times) live on the show record; the
	// encoded bytes live in blob storage keyed by (showID, assetID).
	NewAudioID(showID string) string
	SetAudioTime(ctx context.Context, showID, assetID string, at float64) error
	ClearAudioRefs(ctx context.Context, showID string) error

	UploadAudio(ctx context.Context, showID, assetID string, data []byte) error
	DownloadAudio(ctx context.Context, showID, assetID string) ([]byte, error)
	DeleteAllAudio(ctx context.Context, showID string) error
}

// IdentityProvider supplies the acting identity for creator checks. It is
// an explicit service rather than process-wide state so multiple engines
// can coexist in one process.
type IdentityProvider interface {
	// Current returns the established identity, or false if none exists.
	Current() (model.Identity, bool)

	// OnChange registers a callback invoked whenever the identity
	// changes, including the transition to signed-out.
	OnChange(func(model.Identity))

	// SignInAnonymously establishes a fresh anonymous identity.
	SignInAnonymously(ctx context.Context) (model.Identity, error)
}

var (
	// ErrNotFound is returned when a show, event log, or audio blob does
	// not exist in the store.
	ErrNotFound = errors.New("store: not found")
)
