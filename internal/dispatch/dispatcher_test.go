// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/santhosh-r/TaggableFS/internal/hashstore"
	"github.com/santhosh-r/TaggableFS/internal/metadata"
	"github.com/santhosh-r/TaggableFS/internal/tfs"
)

func newTestDispatcher(t *testing.T, view View) (*Dispatcher, context.Context) {
	t.Helper()
	store, err := hashstore.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	idx, err := metadata.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	manager := tfs.New(idx, store)
	d := New(manager, view, nil, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go d.Run(ctx)
	return d, ctx
}

func mustSubmit(t *testing.T, d *Dispatcher, ctx context.Context, verb, args string) Reply {
	t.Helper()
	reply, err := d.Submit(ctx, verb, args)
	if err != nil {
		t.Fatalf("Submit(%s, %s): %v", verb, args, err)
	}
	return reply
}

func replyText(r Reply) string {
	if len(r.Frames) == 0 {
		return ""
	}
	return r.Frames[len(r.Frames)-1].Payload
}

func TestDispatcherFolderViewRoundTrip(t *testing.T) {
	d, ctx := newTestDispatcher(t, FolderView)

	if got := replyText(mustSubmit(t, d, ctx, "FD_MKDIR", "/a")); got != "TM_ACK" {
		t.Fatalf("FD_MKDIR reply = %q, want TM_ACK", got)
	}

	reply := mustSubmit(t, d, ctx, "FD_IF_DIR", "/a")
	if replyText(reply) != "TM_TRUE" {
		t.Errorf("FD_IF_DIR(/a) = %q, want TM_TRUE", replyText(reply))
	}

	reply = mustSubmit(t, d, ctx, "FD_READ_DIR", "/")
	if len(reply.Frames) != 1 || reply.Frames[0].Payload != "a" {
		t.Errorf("FD_READ_DIR(/) frames = %+v", reply.Frames)
	}
}

func TestDispatcherGetPathWriteOnMissingFile(t *testing.T) {
	d, ctx := newTestDispatcher(t, FolderView)

	mustSubmit(t, d, ctx, "FD_MKDIR", "/a")
	reply := mustSubmit(t, d, ctx, "FD_GET_PATH_WRITE", "/nonexistent")
	if replyText(reply) != "" {
		t.Fatalf("FD_GET_PATH_WRITE on missing file = %q, want empty", replyText(reply))
	}

	reply = mustSubmit(t, d, ctx, "QH_STATS", "")
	if replyText(reply) != "Files: 0, Tags: 0" {
		t.Errorf("QH_STATS = %q, want Files: 0, Tags: 0", replyText(reply))
	}
}

func TestDispatcherTagCommands(t *testing.T) {
	d, ctx := newTestDispatcher(t, FolderView)

	mustSubmit(t, d, ctx, "FD_MKDIR", "/a")
	reply := mustSubmit(t, d, ctx, "QH_CREATE_TAG", "red")
	if replyText(reply) != "TM_ACK" {
		t.Fatalf("QH_CREATE_TAG reply = %q, want TM_ACK", replyText(reply))
	}

	reply = mustSubmit(t, d, ctx, "QH_NEST", "red,red")
	if replyText(reply) == "OK." {
		t.Errorf("self-nest should fail, got OK.")
	}

	reply = mustSubmit(t, d, ctx, "QH_DELETE_TAG", "red")
	if replyText(reply) != "TM_ACK" {
		t.Fatalf("QH_DELETE_TAG reply = %q, want TM_ACK", replyText(reply))
	}
}

func TestDispatcherTagViewUnlinkIsUntag(t *testing.T) {
	d, ctx := newTestDispatcher(t, TagView)

	reply := mustSubmit(t, d, ctx, "FD_UNLINK", "/missing/x")
	if replyText(reply) == "TM_ACK" {
		t.Errorf("untag of a nonexistent tag/file should not ack")
	}
}

func TestDispatcherExitAcks(t *testing.T) {
	d, ctx := newTestDispatcher(t, FolderView)
	reply := mustSubmit(t, d, ctx, "FD_EXIT", "")
	if replyText(reply) != "TM_ACK" {
		t.Errorf("FD_EXIT reply = %q, want TM_ACK", replyText(reply))
	}
}

// TestDispatcherExitStopsLoop covers the bug where FD_EXIT/QH_EXIT
// acked but never actually stopped Run: after the ack, the dispatcher
// must report Done() and stop accepting further requests, even though
// nothing external canceled the context passed to Run.
func TestDispatcherExitStopsLoop(t *testing.T) {
	d, ctx := newTestDispatcher(t, FolderView)

	mustSubmit(t, d, ctx, "QH_EXIT", "")

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done() was not closed after QH_EXIT")
	}

	shortCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := d.Submit(shortCtx, "FD_TEST", ""); err == nil {
		t.Error("Submit after QH_EXIT should fail once Run has stopped, got nil error")
	}
}

type recordedObservation struct {
	verb  string
	errno int
}

type fakeRecorder struct {
	observations []recordedObservation
}

func (f *fakeRecorder) Observe(verb string, errno int, duration time.Duration) {
	f.observations = append(f.observations, recordedObservation{verb, errno})
}

func TestDispatcherRecordsObservations(t *testing.T) {
	d, ctx := newTestDispatcher(t, FolderView)
	rec := &fakeRecorder{}
	d.SetRecorder(rec)

	mustSubmit(t, d, ctx, "FD_MKDIR", "/a")
	mustSubmit(t, d, ctx, "FD_MKDIR", "/a")

	if len(rec.observations) != 2 {
		t.Fatalf("observations = %v, want 2 entries", rec.observations)
	}
	if rec.observations[0].verb != "FD_MKDIR" || rec.observations[0].errno != 0 {
		t.Errorf("first FD_MKDIR observation = %+v, want verb=FD_MKDIR errno=0", rec.observations[0])
	}
	if rec.observations[1].errno == 0 {
		t.Errorf("second FD_MKDIR (duplicate dir) should record a nonzero errno, got %+v", rec.observations[1])
	}
}
