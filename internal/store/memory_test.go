package store

import (
	"context"
	"testing"

	"github.com/puppetworks/puppetstage/internal/model"
)

func TestPutGetShow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id := s.NewShowID()
	if id == "" {
		t.Fatal("NewShowID returned empty id")
	}

	rec := &model.ShowRecord{ID: id, Title: "rehearsal", Creator: "u1"}
	if err := s.PutShow(ctx, rec); err != nil {
		t.Fatalf("PutShow: %v", err)
	}

	got, err := s.GetShow(ctx, id)
	if err != nil {
		t.Fatalf("GetShow: %v", err)
	}
	if got.Title != "rehearsal" || got.Creator != "u1" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.CreateTime.IsZero() || got.ModifyTime.IsZero() {
		t.Error("timestamps should be stamped on put")
	}

	// Returned records are copies.
	got.Title = "mutated"
	again, _ := s.GetShow(ctx, id)
	if again.Title != "rehearsal" {
		t.Error("GetShow should return an independent copy")
	}
}

func TestGetShowNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetShow(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateShow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id := s.NewShowID()
	if err := s.PutShow(ctx, &model.ShowRecord{ID: id}); err != nil {
		t.Fatal(err)
	}

	title := "opening night"
	duration := 12.5
	if err := s.UpdateShow(ctx, id, model.ShowUpdate{Title: &title, Duration: &duration}); err != nil {
		t.Fatalf("UpdateShow: %v", err)
	}

	got, _ := s.GetShow(ctx, id)
	if got.Title != title || got.Duration != duration {
		t.Errorf("update not applied: %+v", got)
	}

	if err := s.UpdateShow(ctx, "missing", model.ShowUpdate{Title: &title}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendAndClearEvents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id := s.NewShowID()
	if err := s.PutShow(ctx, &model.ShowRecord{ID: id}); err != nil {
		t.Fatal(err)
	}

	k1, err := s.AppendEvent(ctx, id, model.Event{Time: 1, Type: "pose"})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	k2, err := s.AppendEvent(ctx, id, model.Event{Time: 2, Type: "move"})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if k1 == k2 {
		t.Error("push ids should be unique")
	}

	got, _ := s.GetShow(ctx, id)
	if len(got.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got.Events))
	}

	if err := s.ClearEvents(ctx, id); err != nil {
		t.Fatalf("ClearEvents: %v", err)
	}
	got, _ = s.GetShow(ctx, id)
	if len(got.Events) != 0 {
		t.Errorf("expected no events after clear, got %d", len(got.Events))
	}
}

func TestAudioRefsAndBlobs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id := s.NewShowID()
	if err := s.PutShow(ctx, &model.ShowRecord{ID: id}); err != nil {
		t.Fatal(err)
	}

	assetID := s.NewAudioID(id)
	if err := s.SetAudioTime(ctx, id, assetID, 3.25); err != nil {
		t.Fatalf("SetAudioTime: %v", err)
	}
	if err := s.UploadAudio(ctx, id, assetID, []byte("wavdata")); err != nil {
		t.Fatalf("UploadAudio: %v", err)
	}

	got, _ := s.GetShow(ctx, id)
	if at, ok := got.Audio[assetID]; !ok || at != 3.25 {
		t.Errorf("audio ref not stored: %v", got.Audio)
	}

	data, err := s.DownloadAudio(ctx, id, assetID)
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	if string(data) != "wavdata" {
		t.Errorf("unexpected blob: %q", data)
	}

	if err := s.ClearAudioRefs(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteAllAudio(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DownloadAudio(ctx, id, assetID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteShow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id := s.NewShowID()
	if err := s.PutShow(ctx, &model.ShowRecord{ID: id}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteShow(ctx, id); err != nil {
		t.Fatalf("DeleteShow: %v", err)
	}
	if _, err := s.GetShow(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryIdentity(t *testing.T) {
	p := NewMemoryIdentity()

	if _, ok := p.Current(); ok {
		t.Fatal("fresh provider should have no identity")
	}

	var notified model.Identity
	p.OnChange(func(id model.Identity) { notified = id })

	id, err := p.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("SignInAnonymously: %v", err)
	}
	if !id.Valid() || !id.Anonymous {
		t.Errorf("unexpected identity: %+v", id)
	}
	if notified.ID != id.ID {
		t.Error("OnChange callback not invoked with new identity")
	}

	cur, ok := p.Current()
	if !ok || cur.ID != id.ID {
		t.Error("Current should return the signed-in identity")
	}
}
