package worker

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cryptekbits/GeoDash/internal/logging"
)

// staleAfter is spec.md §4.G's "older than one day."
const staleAfter = 24 * time.Hour

const flagPrefix = "geodash-flag-"

// SweepStale lists the coordination-flag files under dir and unlinks any
// whose mtime is older than staleAfter, per spec.md §4.G's "stale-region
// sweep." Coordinator.RunMaster calls it once at startup, so the single
// master process is the one nominated sweeper, before any worker attaches.
func SweepStale(dir string, log logging.Logger) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasPrefix(ent.Name(), flagPrefix) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= staleAfter {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("stale region sweep failed to unlink", logging.String("path", path), logging.Err(err))
			continue
		}
		log.Info("stale region sweep unlinked region", logging.String("path", path))
	}
	return nil
}
