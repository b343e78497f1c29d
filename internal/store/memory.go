package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/puppetworks/puppetstage/internal/model"
)

// MemoryStore keeps show records, event logs and audio blobs in process
// memory. It backs tests and single-machine deployments; the Cassandra
// implementation covers everything else.
type MemoryStore struct {
	mu    sync.RWMutex
	shows map[string]*model.ShowRecord
	blobs map[blobKey][]byte
}

type blobKey struct {
	showID  string
	assetID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shows: make(map[string]*model.ShowRecord),
		blobs: make(map[blobKey][]byte),
	}
}

func (s *MemoryStore) NewShowID() string {
	return uuid.New().String()
}

func (s *MemoryStore) NewAudioID(showID string) string {
	return uuid.New().String()
}

func (s *MemoryStore) GetShow(ctx context.Context, id string) (*model.ShowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.shows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) PutShow(ctx context.Context, rec *model.ShowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyRecord(rec)
	now := time.Now()
	stored.CreateTime = now
	stored.ModifyTime = now
	s.shows[stored.ID] = stored
	return nil
}

func (s *MemoryStore) UpdateShow(ctx context.Context, id string, update model.ShowUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.shows[id]
	if !ok {
		return ErrNotFound
	}
	if update.Title != nil {
		rec.Title = *update.Title
	}
	if update.Duration != nil {
		rec.Duration = *update.Duration
	}
	rec.ModifyTime = time.Now()
	return nil
}

func (s *MemoryStore) DeleteShow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shows[id]; !ok {
		return ErrNotFound
	}
	delete(s.shows, id)
	return nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, showID string, ev model.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.shows[showID]
	if !ok {
		return "", ErrNotFound
	}
	if rec.Events == nil {
		rec.Events = make(map[string]model.Event)
	}
	pushID := uuid.New().String()
	rec.Events[pushID] = ev
	rec.ModifyTime = time.Now()
	return pushID, nil
}

func (s *MemoryStore) ClearEvents(ctx context.Context, showID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.shows[showID]
	if !ok {
		return ErrNotFound
	}
	rec.Events = nil
	rec.ModifyTime = time.Now()
	return nil
}

func (s *MemoryStore) SetAudioTime(ctx context.Context, showID, assetID string, at float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.shows[showID]
	if !ok {
		return ErrNotFound
	}
	if rec.Audio == nil {
		rec.Audio = make(map[string]float64)
	}
	rec.Audio[assetID] = at
	rec.ModifyTime = time.Now()
	return nil
}

func (s *MemoryStore) ClearAudioRefs(ctx context.Context, showID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.shows[showID]
	if !ok {
		return ErrNotFound
	}
	rec.Audio = nil
	rec.ModifyTime = time.Now()
	return nil
}

func (s *MemoryStore) UploadAudio(ctx context.Context, showID, assetID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[blobKey{showID, assetID}] = buf
	return nil
}

func (s *MemoryStore) DownloadAudio(ctx context.Context, showID, assetID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[blobKey{showID, assetID}]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (s *MemoryStore) DeleteAllAudio(ctx context.Context, showID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.blobs {
		if key.showID == showID {
			delete(s.blobs, key)
		}
	}
	return nil
}

func copyRecord(rec *model.ShowRecord) *model.ShowRecord {
	out := *rec
	if rec.Events != nil {
		out.Events = make(map[string]model.Event, len(rec.Events))
		for k, v := range rec.Events {
			out.Events[k] = v
		}
	}
	if rec.Audio != nil {
		out.Audio = make(map[string]float64, len(rec.Audio))
		for k, v := range rec.Audio {
			out.Audio[k] = v
		}
	}
	return &out
}
