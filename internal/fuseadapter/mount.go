// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/santhosh-r/TaggableFS/internal/dispatch"
)

// Options configures one FUSE mount. A mount serves exactly one view
// (folder or tag, spec.md §4.5); Dispatcher must have been built with
// the matching dispatch.View.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Dispatcher is the single request sink every VFS callback
	// funnels through.
	Dispatcher *dispatch.Dispatcher

	// FsName labels the mount for `mount`/`df` output.
	FsName string

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a text logger that
	// writes error-level messages to stderr is used.
	Logger *slog.Logger
}

// Mount mounts the TaggableFS view at the configured mountpoint. The
// caller must call Unmount on the returned Server when done. The
// mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if options.FsName == "" {
		options.FsName = "taggablefs"
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &node{opts: &options, path: "/"}

	entryTimeout := time.Second
	attrTimeout := time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:         options.FsName,
			Name:           "taggablefs",
			AllowOther:     options.AllowOther,
			SingleThreaded: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("taggablefs mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// node is the only InodeEmbedder this package needs: the same type
// serves both directories and regular files, since which one a given
// path is can change the instant a caller deletes and recreates it,
// and the daemon is the single source of truth for that either way.
// path is the POSIX-style, daemon-visible path this node represents
// ("/" for the mount root).
type node struct {
	gofuse.Inode
	opts *Options
	path string
}

var (
	_ gofuse.InodeEmbedder = (*node)(nil)
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeSetattrer = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
	_ gofuse.NodeCreater   = (*node)(nil)
	_ gofuse.NodeMkdirer   = (*node)(nil)
	_ gofuse.NodeRmdirer   = (*node)(nil)
	_ gofuse.NodeUnlinker  = (*node)(nil)
	_ gofuse.NodeRenamer   = (*node)(nil)
)

// childPath joins a directory's path with a single component.
func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func (n *node) submit(ctx context.Context, verb, args string) dispatch.Reply {
	reply, err := n.opts.Dispatcher.Submit(ctx, verb, args)
	if err != nil {
		return dispatch.Reply{}
	}
	return reply
}

func lastPayload(r dispatch.Reply) string {
	if len(r.Frames) == 0 {
		return ""
	}
	return r.Frames[len(r.Frames)-1].Payload
}

// ackErrno interprets a TM_ACK/decimal-errno reply (spec.md §6).
func ackErrno(r dispatch.Reply) syscall.Errno {
	payload := lastPayload(r)
	if payload == "TM_ACK" {
		return 0
	}
	if code, err := strconv.Atoi(payload); err == nil {
		return syscall.Errno(code)
	}
	return syscall.EIO
}

// attr resolves whether n.path is currently a directory, and if not,
// the object-store path backing it as a regular file.
func (n *node) attr(ctx context.Context) (isDir bool, storePath string, errno syscall.Errno) {
	if n.path == "/" {
		return true, "", 0
	}
	if lastPayload(n.submit(ctx, "FD_IF_DIR", n.path)) == "TM_TRUE" {
		return true, "", 0
	}
	storePath = lastPayload(n.submit(ctx, "FD_GET_PATH", n.path))
	if storePath == "" {
		return false, "", syscall.ENOENT
	}
	return false, storePath, 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	isDir, storePath, errno := n.attr(ctx)
	if errno != 0 {
		return errno
	}
	if isDir {
		out.Mode = syscall.S_IFDIR | 0o755
		return 0
	}
	size, err := statSize(storePath)
	if err != nil {
		return syscall.EIO
	}
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(size)
	return 0
}

// Setattr only needs to support truncate-by-attribute (ftruncate,
// truncate(2) on an already-open descriptor); ownership and mode bits
// are not modeled (spec.md Non-goals: no xattrs, no multi-user
// permission model).
func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		reply := n.submit(ctx, "FD_TRUNCATE", n.path+","+strconv.FormatUint(size, 10))
		if errno := ackErrno(reply); errno != 0 {
			return errno
		}
	}
	return n.Getattr(ctx, f, out)
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childP := childPath(n.path, name)

	if lastPayload(n.submit(ctx, "FD_IF_DIR", childP)) == "TM_TRUE" {
		child := n.NewPersistentInode(ctx, &node{opts: n.opts, path: childP}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		out.Mode = syscall.S_IFDIR | 0o755
		return child, 0
	}

	storePath := lastPayload(n.submit(ctx, "FD_GET_PATH", childP))
	if storePath == "" {
		return nil, syscall.ENOENT
	}
	size, err := statSize(storePath)
	if err != nil {
		return nil, syscall.EIO
	}

	child := n.NewPersistentInode(ctx, &node{opts: n.opts, path: childP}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(size)
	return child, 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	reply := n.submit(ctx, "FD_READ_DIR", n.path)
	entries := make([]fuse.DirEntry, 0, len(reply.Frames))
	for _, frame := range reply.Frames {
		if frame.Payload == "" {
			continue
		}
		entries = append(entries, fuse.DirEntry{Name: frame.Payload})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childP := childPath(n.path, name)
	if errno := ackErrno(n.submit(ctx, "FD_MKDIR", childP)); errno != 0 {
		return nil, errno
	}
	child := n.NewPersistentInode(ctx, &node{opts: n.opts, path: childP}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	out.Mode = syscall.S_IFDIR | 0o755
	return child, 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return ackErrno(n.submit(ctx, "FD_RMDIR", childPath(n.path, name)))
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return ackErrno(n.submit(ctx, "FD_UNLINK", childPath(n.path, name)))
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	destDir, ok := newParent.(*node)
	if !ok {
		return syscall.EINVAL
	}
	oldPath := childPath(n.path, name)
	newPath := childPath(destDir.path, newName)
	reply := n.submit(ctx, "FD_RENAME", oldPath+","+newPath)
	if lastPayload(reply) != "TM_ACK" {
		return syscall.EIO
	}
	return 0
}

// Create implements both O_CREAT opens and plain creat(2): it asks
// the daemon to allocate a new placeholder file (FD_ADD_TEMP, see
// SPEC_FULL.md §4.3), then immediately routes the write handle
// through the same copy-on-first-write shadow as Open's write path
// (FD_GET_PATH_WRITE). Writing straight into the FD_ADD_TEMP
// placeholder would leave the file permanently addressed by its
// "TEMP<seq>" placeholder instead of a real content digest, since
// FD_UPDATE only ever promotes a ".WRITE" shadow; going through
// FD_GET_PATH_WRITE first gives Release's FD_UPDATE a shadow to
// promote, so a freshly created file is content-addressed and
// deduplicated exactly like an overwrite of an existing one.
func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	childP := childPath(n.path, name)
	if lastPayload(n.submit(ctx, "FD_ADD_TEMP", childP)) == "" {
		return nil, nil, 0, syscall.EIO
	}

	shadowPath := lastPayload(n.submit(ctx, "FD_GET_PATH_WRITE", childP))
	if shadowPath == "" {
		return nil, nil, 0, syscall.EIO
	}

	f, err := os.OpenFile(shadowPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, 0, syscall.EIO
	}

	child := n.NewPersistentInode(ctx, &node{opts: n.opts, path: childP}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o644

	handle := &writeHandle{opts: n.opts, path: childP, file: f}
	return child, handle, 0, 0
}

// Open serves reads directly against the backing object-store blob
// and routes writes through the copy-on-first-write shadow protocol
// (FD_GET_PATH_WRITE / FD_UPDATE).
func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&uint32(os.O_WRONLY|os.O_RDWR) != 0 {
		shadowPath := lastPayload(n.submit(ctx, "FD_GET_PATH_WRITE", n.path))
		if shadowPath == "" {
			return nil, 0, syscall.ENOENT
		}
		f, err := os.OpenFile(shadowPath, os.O_RDWR, 0o644)
		if err != nil {
			return nil, 0, syscall.EIO
		}
		return &writeHandle{opts: n.opts, path: n.path, file: f}, 0, 0
	}

	_, storePath, errno := n.attr(ctx)
	if errno != 0 {
		return nil, 0, errno
	}
	if isEmptyDigestPath(storePath) {
		return emptyReadHandle{}, fuse.FOPEN_KEEP_CACHE, 0
	}
	f, err := os.Open(storePath)
	if err != nil {
		return nil, 0, syscall.EIO
	}
	return &readHandle{file: f}, fuse.FOPEN_KEEP_CACHE, 0
}

// sliceDirStream implements gofuse.DirStream from a slice of entries.
// Entry types are left unknown (mode 0): the kernel issues a follow-up
// lookup/getattr for anything it needs to distinguish, matching
// original_source/src/FUSEFileSystem.cpp's TFSreaddir, which fills
// every entry with a NULL stat.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
