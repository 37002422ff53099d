package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// flagSize is the whole point of a coordination flag: one byte,
// uninitialised (0) or initialised (1), per spec.md §4.G.
const flagSize = 1

// sharedFlag is a named, fixed-size, ref-counted coordination flag backed
// by an mmap'd file under dir, not POSIX shm_open (not exposed by any Go
// stdlib or pack dependency — see coordinator.go's doc comment). flock
// serialises the read-modify-write of the single byte across processes;
// refcount is process-local, matching spec.md §4.G's "reference count...
// the parent process on final shutdown unlinks."
type sharedFlag struct {
	name string
	path string

	mu   sync.Mutex
	file *os.File
	mmap []byte
}

var (
	registryMu sync.Mutex
	registry   = map[string]*refCounted{}
)

type refCounted struct {
	flag  *sharedFlag
	count int
}

// openFlag attaches to (creating if necessary) the named region under dir,
// incrementing this process's reference count for name.
func openFlag(dir, name string) (*sharedFlag, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if rc, ok := registry[name]; ok {
		rc.count++
		return rc.flag, nil
	}

	path := filepath.Join(dir, "geodash-flag-"+name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open shared flag %q: %w", name, err)
	}
	if err := f.Truncate(flagSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate shared flag %q: %w", name, err)
	}
	m, err := unix.Mmap(int(f.Fd()), 0, flagSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap shared flag %q: %w", name, err)
	}

	sf := &sharedFlag{name: name, path: path, file: f, mmap: m}
	registry[name] = &refCounted{flag: sf, count: 1}
	return sf, nil
}

// Initialized reports whether the flag byte is set, under an interprocess
// flock, per spec.md §4.G's "mutated only by single-byte writes under an
// interprocess lock during the init protocol."
func (sf *sharedFlag) Initialized() (bool, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if err := sf.lock(); err != nil {
		return false, err
	}
	defer sf.unlock()
	return sf.mmap[0] == 1, nil
}

// MarkInitialized sets the flag byte, idempotently.
func (sf *sharedFlag) MarkInitialized() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if err := sf.lock(); err != nil {
		return err
	}
	defer sf.unlock()
	sf.mmap[0] = 1
	return nil
}

func (sf *sharedFlag) lock() error {
	return unix.Flock(int(sf.file.Fd()), unix.LOCK_EX)
}

func (sf *sharedFlag) unlock() error {
	return unix.Flock(int(sf.file.Fd()), unix.LOCK_UN)
}

// detach decrements this process's reference count for name, and when it
// reaches zero, unmaps and closes the local handle — it does not unlink
// the file; Coordinator.UnlinkAll, called by the parent process on final
// shutdown, does that, per spec.md §4.G.
func detachFlag(name string) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	rc, ok := registry[name]
	if !ok {
		return nil
	}
	rc.count--
	if rc.count > 0 {
		return nil
	}
	delete(registry, name)

	sf := rc.flag
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if err := unix.Munmap(sf.mmap); err != nil {
		return err
	}
	return sf.file.Close()
}

// unlinkFlag removes the backing file outright, used by
// Coordinator.UnlinkAll on final shutdown.
func unlinkFlag(dir, name string) error {
	return os.Remove(filepath.Join(dir, "geodash-flag-"+name))
}
