package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// acquireLock creates the lock file next to the state database so that two
// applies never share a journal. The returned func removes it.
func acquireLock(stateDB string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(stateDB), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := stateDB + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		owner, _ := os.ReadFile(path)
		return nil, fmt.Errorf("another apply holds %s (pid %s); remove it if that process is gone", path, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	_ = f.Close()

	return func() { _ = os.Remove(path) }, nil
}
