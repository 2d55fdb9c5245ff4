// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/santhosh-r/TaggableFS/internal/pathutil"
	"github.com/santhosh-r/TaggableFS/internal/tfs"
)

// Recorder receives one observation per request handled, keyed by verb
// and by the reply's resulting errno (0 on success). Package metrics
// implements this; Dispatcher only depends on the interface so that
// the ambient observability stack never becomes a dependency of the
// core dispatch logic itself.
type Recorder interface {
	Observe(verb string, errno int, duration time.Duration)
}

// View names which of the two mutually exclusive mount views the
// daemon is currently serving; it determines how the dual-meaning
// FD_* verbs (mkdir/rmdir/unlink/rename/truncate/write) are routed.
type View int

const (
	FolderView View = iota
	TagView
)

// Request is one textual command off the wire (spec.md §6), already
// split into verb and argument string. reply carries the Reply back
// to whichever goroutine (socket connection handler) is waiting on
// Submit.
type Request struct {
	Verb  string
	Args  string
	reply chan Reply
}

// Reply is one logical response: one or more frames, the last of
// which is marked complete.
type Reply struct {
	Frames []Frame
}

// Dispatcher is the single-threaded request loop of spec.md §4.5/§5:
// every call into tfs.Manager happens on the goroutine running Run,
// regardless of which source (FUSE adapter or CLI server) submitted
// the request.
type Dispatcher struct {
	manager  *tfs.Manager
	view     View
	log      *slog.Logger
	inbound  chan Request
	recorder Recorder

	stop     chan struct{}
	stopOnce sync.Once
}

// SetRecorder attaches a metrics recorder. Optional; a Dispatcher with
// no recorder set simply skips the observation.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// New builds a Dispatcher for the given mount view. inboundDepth sets
// the inbound channel's buffer, mirroring the fixed queue depth of
// spec.md §6 (the spec's depth is 10; callers may choose any positive
// depth).
func New(manager *tfs.Manager, view View, log *slog.Logger, inboundDepth int) *Dispatcher {
	if inboundDepth <= 0 {
		inboundDepth = 10
	}
	return &Dispatcher{
		manager: manager,
		view:    view,
		log:     log,
		inbound: make(chan Request, inboundDepth),
		stop:    make(chan struct{}),
	}
}

// Stop requests that Run exit after the request currently being
// handled (if any) has been replied to. Safe to call more than once
// or from any goroutine.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Done returns a channel closed once Stop has been called, whether
// from an FD_EXIT/QH_EXIT request or directly by a caller. main
// selects on this alongside its own context so that an EXIT request
// triggers the same unmount/snapshot/close sequence as an OS signal
// (spec.md §4.5).
func (d *Dispatcher) Done() <-chan struct{} {
	return d.stop
}

// Submit enqueues a request and blocks for its reply. It is the only
// entry point either request source uses; every call funnels through
// the same channel, giving the dispatcher goroutine the sole view of
// ordering across sources (spec.md §5 ordering guarantees).
func (d *Dispatcher) Submit(ctx context.Context, verb, args string) (Reply, error) {
	req := Request{Verb: verb, Args: args, reply: make(chan Reply, 1)}
	select {
	case d.inbound <- req:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Run drives the dispatcher loop until ctx is canceled. It is meant
// to be started in its own goroutine by the daemon's main function.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case req := <-d.inbound:
			start := time.Now()
			reply := d.handle(req.Verb, req.Args)
			if d.recorder != nil {
				d.recorder.Observe(req.Verb, replyErrno(reply), time.Since(start))
			}
			req.reply <- reply
		}
	}
}

// replyErrno extracts a decimal errno from a reply's last frame, or 0
// if the reply was not an errno-shaped failure (TM_ACK, a path, a
// multi-part listing, a human-readable status string, etc. all report
// 0; only the FD_* failure-path convention of spec.md §7 encodes a
// real errno as the payload).
func replyErrno(r Reply) int {
	if len(r.Frames) == 0 {
		return 0
	}
	payload := r.Frames[len(r.Frames)-1].Payload
	code, err := strconv.Atoi(payload)
	if err != nil {
		return 0
	}
	return code
}

func ack() Reply        { return textReply("TM_ACK") }
func fail() Reply       { return textReply("TM_FAIL") }
func textReply(s string) Reply {
	return Reply{Frames: []Frame{{Complete: true, Payload: s}}}
}

func multiReply(entries []string) Reply {
	if len(entries) == 0 {
		return Reply{Frames: []Frame{{Complete: true, Payload: ""}}}
	}
	frames := make([]Frame, len(entries))
	for i, e := range entries {
		frames[i] = Frame{Complete: i == len(entries)-1, Payload: e}
	}
	return Reply{Frames: frames}
}

// errnoFor maps a tfs sentinel error to the syscall.Errno the kernel
// adapter should surface, per spec.md §7.
func errnoFor(err error) syscall.Errno {
	switch {
	case errors.Is(err, tfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, tfs.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, tfs.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, tfs.ErrInvalid):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

func (d *Dispatcher) fromErr(err error) Reply {
	if err == nil {
		return ack()
	}
	return textReply(strconv.Itoa(int(errnoFor(err))))
}

func (d *Dispatcher) handle(verb, args string) Reply {
	switch verb {
	case "FD_TEST", "FD_LOG":
		return ack()
	case "FD_GET_PATH":
		return d.handleGetPath(args, false)
	case "FD_GET_PATH_WRITE":
		return d.handleGetPath(args, true)
	case "FD_IF_DIR":
		return d.handleIfDir(args)
	case "FD_READ_DIR":
		return d.handleReadDir(args)
	case "FD_MKDIR":
		return d.handleMkdir(args)
	case "FD_RMDIR":
		return d.handleRmdir(args)
	case "FD_UNLINK":
		return d.handleUnlink(args)
	case "FD_TRUNCATE":
		return d.handleTruncate(args)
	case "FD_RENAME":
		return d.handleRename(args)
	case "FD_UPDATE":
		return d.handleUpdate(args)
	case "FD_ADD_TEMP":
		return d.handleMknod(args)
	case "FD_EXIT", "QH_EXIT":
		// Stop only takes effect once Run reaches its next loop
		// iteration, after this reply has already been handed back
		// on req.reply, so the requester's round trip always
		// completes before the daemon begins shutting down.
		d.Stop()
		return ack()
	case "QH_TAG":
		return d.handleTag(args)
	case "QH_UNTAG":
		return d.handleUntag(args)
	case "QH_NEST":
		return d.handleNest(args)
	case "QH_UNNEST":
		return d.handleUnnest(args)
	case "QH_STATS":
		return d.handleStats()
	case "QH_SEARCH":
		return d.handleSearch(args)
	case "QH_CREATE_TAG":
		return d.fromErr(d.manager.CreateTag(args))
	case "QH_DELETE_TAG":
		return d.fromErr(d.manager.DeleteTag(args))
	case "QH_GET_TAGS":
		return d.handleGetTags(args)
	default:
		if d.log != nil {
			d.log.Warn("unknown verb", "verb", verb)
		}
		return fail()
	}
}

func (d *Dispatcher) handleGetPath(path string, forWrite bool) Reply {
	if forWrite {
		if d.view == TagView {
			return textReply("")
		}
		storePath, err := d.manager.GetPathForWrite(path)
		if err != nil {
			return textReply("")
		}
		return textReply(storePath)
	}

	var storePath string
	var err error
	if d.view == TagView {
		_, storePath, err = d.manager.GetAttrTag(path)
	} else {
		_, storePath, err = d.manager.GetAttr(path)
	}
	if err != nil {
		return textReply("")
	}
	return textReply(storePath)
}

func (d *Dispatcher) handleIfDir(path string) Reply {
	var isDir bool
	var err error
	if d.view == TagView {
		isDir, _, err = d.manager.GetAttrTag(path)
	} else {
		isDir, _, err = d.manager.GetAttr(path)
	}
	if err != nil {
		return textReply("TM_FALSE")
	}
	if isDir {
		return textReply("TM_TRUE")
	}
	return textReply("TM_FALSE")
}

func (d *Dispatcher) handleReadDir(path string) Reply {
	var names []string
	var err error
	if d.view == TagView {
		names, err = d.manager.ListDirTag(path)
	} else {
		names, err = d.manager.ListDir(path)
	}
	if err != nil {
		return multiReply(nil)
	}
	return multiReply(names)
}

func (d *Dispatcher) handleMkdir(path string) Reply {
	if d.view == TagView {
		return d.fromErr(d.manager.MkdirTag(path))
	}
	return d.fromErr(d.manager.Mkdir(path))
}

func (d *Dispatcher) handleRmdir(path string) Reply {
	if d.view == TagView {
		return d.fromErr(d.manager.RmdirTag(path))
	}
	return d.fromErr(d.manager.Rmdir(path))
}

func (d *Dispatcher) handleUnlink(path string) Reply {
	if d.view == TagView {
		return d.fromErr(d.manager.UntagFile(path))
	}
	_, err := d.manager.Unlink(path)
	return d.fromErr(err)
}

func (d *Dispatcher) handleTruncate(args string) Reply {
	if d.view == TagView {
		return fail()
	}
	parts := pathutil.SplitArgs(args)
	if len(parts) != 2 {
		return fail()
	}
	length, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fail()
	}
	return d.fromErr(d.manager.Truncate(parts[0], length))
}

func (d *Dispatcher) handleRename(args string) Reply {
	parts := pathutil.SplitArgs(args)
	if len(parts) != 2 {
		return fail()
	}
	var err error
	if d.view == TagView {
		err = d.manager.RenameTag(parts[0], parts[1])
	} else {
		err = d.manager.Rename(parts[0], parts[1])
	}
	if err != nil {
		return fail()
	}
	return ack()
}

func (d *Dispatcher) handleUpdate(path string) Reply {
	if d.view == TagView {
		return fail()
	}
	return d.fromErr(d.manager.Update(path))
}

// handleMknod implements file creation over FD_ADD_TEMP: the Manager
// (not the caller) allocates the placeholder digest and creates the
// empty blob, so the verb takes just the new file's path and replies
// with the object-store path of the created placeholder, or "" on
// failure, the same reply shape as FD_GET_PATH.
func (d *Dispatcher) handleMknod(path string) Reply {
	if d.view == TagView {
		return textReply("")
	}
	tempName, err := d.manager.Mknod(path)
	if err != nil {
		return textReply("")
	}
	return textReply(d.manager.StorePath(tempName))
}

func (d *Dispatcher) handleTag(args string) Reply {
	parts := pathutil.SplitArgs(args)
	if len(parts) != 2 {
		return textReply("Failed. Invalid arguments.")
	}
	if err := d.manager.TagFile(parts[0], parts[1]); err != nil {
		return textReply(statusFor(err))
	}
	return textReply("OK.")
}

func (d *Dispatcher) handleUntag(args string) Reply {
	parts := pathutil.SplitArgs(args)
	if len(parts) != 2 {
		return textReply("Failed. Invalid arguments.")
	}
	if err := d.manager.Untag(parts[0], parts[1]); err != nil {
		return textReply(statusFor(err))
	}
	return textReply("OK.")
}

func (d *Dispatcher) handleNest(args string) Reply {
	parts := pathutil.SplitArgs(args)
	if len(parts) != 2 {
		return textReply("Failed. Invalid arguments.")
	}
	if err := d.manager.Nest(parts[0], parts[1]); err != nil {
		return textReply(statusFor(err))
	}
	return textReply("OK.")
}

func (d *Dispatcher) handleUnnest(args string) Reply {
	parts := pathutil.SplitArgs(args)
	if len(parts) != 2 {
		return textReply("Failed. Invalid arguments.")
	}
	if err := d.manager.Unnest(parts[0], parts[1]); err != nil {
		return textReply(statusFor(err))
	}
	return textReply("OK.")
}

func (d *Dispatcher) handleStats() Reply {
	files, tags, err := d.manager.Stats()
	if err != nil {
		return textReply("Failed.")
	}
	return textReply("Files: " + strconv.Itoa(files) + ", Tags: " + strconv.Itoa(tags))
}

func (d *Dispatcher) handleSearch(args string) Reply {
	parts := pathutil.SplitArgs(args)
	if len(parts) < 1 {
		return multiReply(nil)
	}
	strict := parts[0] == "1" || parts[0] == "true"
	var tagNames []string
	if len(parts) > 1 {
		tagNames = pathutil.ParseSemicolonList(parts[1])
	}
	names, err := d.manager.Search(tagNames, strict)
	if err != nil {
		return multiReply(nil)
	}
	return multiReply(names)
}

func (d *Dispatcher) handleGetTags(path string) Reply {
	names, err := d.manager.GetTags(path)
	if err != nil {
		return textReply("Invalid")
	}
	return textReply(pathutil.FormatSemicolonList(names))
}

// statusFor renders the human-readable status strings the CLI
// prefixes its batch-tag diagnostics with (spec.md §6, §7).
func statusFor(err error) string {
	switch {
	case errors.Is(err, tfs.ErrNotFound):
		return "Failed. Path or tag invalid."
	case errors.Is(err, tfs.ErrExists):
		return "Failed. Name already exists."
	case errors.Is(err, tfs.ErrNotEmpty):
		return "Failed. Not empty."
	case errors.Is(err, tfs.ErrCycle):
		return "Failed. Would create a cycle."
	default:
		return "Failed."
	}
}
