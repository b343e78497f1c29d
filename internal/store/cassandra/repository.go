package cassandra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/puppetworks/puppetstage/internal/model"
	"github.com/puppetworks/puppetstage/internal/store"
)

// Repository implements store.ShowStore over Cassandra. Event params are
// serialized as JSON text; modify timestamps are stamped here, which is the
// closest this backend gets to server-assigned time.
type Repository struct {
	client  *Client
	timeout time.Duration
}

func NewRepository(client *Client, timeout time.Duration) *Repository {
	return &Repository{client: client, timeout: timeout}
}

var _ store.ShowStore = (*Repository)(nil)

func (r *Repository) NewShowID() string {
	return uuid.New().String()
}

func (r *Repository) NewAudioID(showID string) string {
	return uuid.New().String()
}

func (r *Repository) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Repository) GetShow(ctx context.Context, id string) (*model.ShowRecord, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, title, create_time, modify_time, creator, duration
		FROM %s.shows WHERE id = ?`, r.client.Keyspace())

	var rec model.ShowRecord
	err := r.client.Session().Query(query, id).WithContext(ctx).Scan(
		&rec.ID, &rec.Title, &rec.CreateTime, &rec.ModifyTime, &rec.Creator, &rec.Duration,
	)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get show: %w", err)
	}

	if err := r.loadEvents(ctx, &rec); err != nil {
		return nil, err
	}
	if err := r.loadAudioRefs(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) loadEvents(ctx context.Context, rec *model.ShowRecord) error {
	query := fmt.Sprintf(`
		SELECT push_id, time, type, params, idx, has_index, duration
		FROM %s.show_events WHERE show_id = ?`, r.client.Keyspace())

	iter := r.client.Session().Query(query, rec.ID).WithContext(ctx).Iter()
	var (
		pushID    gocql.UUID
		evTime    float64
		evType    string
		paramsRaw string
		idx       int
		hasIndex  bool
		duration  float64
	)
	for iter.Scan(&pushID, &evTime, &evType, &paramsRaw, &idx, &hasIndex, &duration) {
		ev := model.Event{
			Time:     evTime,
			Type:     evType,
			Index:    idx,
			HasIndex: hasIndex,
			Duration: duration,
		}
		if paramsRaw != "" {
			if err := json.Unmarshal([]byte(paramsRaw), &ev.Params); err != nil {
				slog.Warn("Skipping event with unreadable params", "show_id", rec.ID, "push_id", pushID.String(), "error", err)
				continue
			}
		}
		if rec.Events == nil {
			rec.Events = make(map[string]model.Event)
		}
		rec.Events[pushID.String()] = ev
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	return nil
}

func (r *Repository) loadAudioRefs(ctx context.Context, rec *model.ShowRecord) error {
	query := fmt.Sprintf(`
		SELECT asset_id, start_at
		FROM %s.show_audio WHERE show_id = ?`, r.client.Keyspace())

	iter := r.client.Session().Query(query, rec.ID).WithContext(ctx).Iter()
	var (
		assetID string
		startAt float64
	)
	for iter.Scan(&assetID, &startAt) {
		if rec.Audio == nil {
			rec.Audio = make(map[string]float64)
		}
		rec.Audio[assetID] = startAt
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to load audio refs: %w", err)
	}
	return nil
}

func (r *Repository) PutShow(ctx context.Context, rec *model.ShowRecord) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s.shows (id, title, create_time, modify_time, creator, duration)
		VALUES (?, ?, ?, ?, ?, ?)`, r.client.Keyspace())

	now := time.Now()
	err := r.client.Session().Query(query,
		rec.ID, rec.Title, now, now, rec.Creator, rec.Duration,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to put show: %w", err)
	}
	return nil
}

func (r *Repository) UpdateShow(ctx context.Context, id string, update model.ShowUpdate) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	if update.Title != nil {
		query := fmt.Sprintf(`UPDATE %s.shows SET title = ?, modify_time = ? WHERE id = ?`, r.client.Keyspace())
		if err := r.client.Session().Query(query, *update.Title, time.Now(), id).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to update title: %w", err)
		}
	}
	if update.Duration != nil {
		query := fmt.Sprintf(`UPDATE %s.shows SET duration = ?, modify_time = ? WHERE id = ?`, r.client.Keyspace())
		if err := r.client.Session().Query(query, *update.Duration, time.Now(), id).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to update duration: %w", err)
		}
	}
	return nil
}

func (r *Repository) DeleteShow(ctx context.Context, id string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s.shows WHERE id = ?`, r.client.Keyspace())
	if err := r.client.Session().Query(query, id).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete show: %w", err)
	}
	return nil
}

func (r *Repository) AppendEvent(ctx context.Context, showID string, ev model.Event) (string, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	paramsRaw := ""
	if ev.Params != nil {
		data, err := json.Marshal(ev.Params)
		if err != nil {
			return "", fmt.Errorf("failed to encode event params: %w", err)
		}
		paramsRaw = string(data)
	}

	pushID := gocql.TimeUUID()
	query := fmt.Sprintf(`
		INSERT INTO %s.show_events (show_id, push_id, time, type, params, idx, has_index, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.client.Keyspace())

	err := r.client.Session().Query(query,
		showID, pushID, ev.Time, ev.Type, paramsRaw, ev.Index, ev.HasIndex, ev.Duration,
	).WithContext(ctx).Exec()
	if err != nil {
		return "", fmt.Errorf("failed to append event: %w", err)
	}
	return pushID.String(), nil
}

func (r *Repository) ClearEvents(ctx context.Context, showID string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s.show_events WHERE show_id = ?`, r.client.Keyspace())
	if err := r.client.Session().Query(query, showID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	return nil
}

func (r *Repository) SetAudioTime(ctx context.Context, showID, assetID string, at float64) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s.show_audio (show_id, asset_id, start_at)
		VALUES (?, ?, ?)`, r.client.Keyspace())
	if err := r.client.Session().Query(query, showID, assetID, at).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to set audio time: %w", err)
	}
	return nil
}

func (r *Repository) ClearAudioRefs(ctx context.Context, showID string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s.show_audio WHERE show_id = ?`, r.client.Keyspace())
	if err := r.client.Session().Query(query, showID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to clear audio refs: %w", err)
	}
	return nil
}

func (r *Repository) UploadAudio(ctx context.Context, showID, assetID string, data []byte) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s.audio_blobs (show_id, asset_id, data)
		VALUES (?, ?, ?)`, r.client.Keyspace())
	if err := r.client.Session().Query(query, showID, assetID, data).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to upload audio: %w", err)
	}
	return nil
}

func (r *Repository) DownloadAudio(ctx context.Context, showID, assetID string) ([]byte, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT data FROM %s.audio_blobs
		WHERE show_id = ? AND asset_id = ?`, r.client.Keyspace())

	var data []byte
	err := r.client.Session().Query(query, showID, assetID).WithContext(ctx).Scan(&data)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	return data, nil
}

func (r *Repository) DeleteAllAudio(ctx context.Context, showID string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s.audio_blobs WHERE show_id = ?`, r.client.Keyspace())
	if err := r.client.Session().Query(query, showID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete audio blobs: %w", err)
	}
	return nil
}
