package filestate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
)

// KindDirectoryCreate creates the directory of a target.
const KindDirectoryCreate engine.OperationKind = "filestate.directory_create"

// DirectoryCreate creates a missing target directory, parents included.
type DirectoryCreate struct {
	engine.BaseOperation

	// created is the outermost directory this instance created, empty until
	// Apply made a change.
	created string
}

// NewDirectoryCreate plans the creation of t's directory.
func NewDirectoryCreate(t engine.Target, o config.Option) *DirectoryCreate {
	op := &DirectoryCreate{
		BaseOperation: engine.NewBaseOperation(KindDirectoryCreate, engine.ScopeLocation, t, o),
	}
	op.SetDescriptions("Create directory", "Directory missing", "Directory created")
	return op
}

func (op *DirectoryCreate) Applicable(context.Context, *engine.ExecContext) (bool, error) {
	if op.Option() != nil && !op.Option().Value().IsTrue() {
		return false, nil
	}
	return !dirExists(op.Target().Path()), nil
}

func (op *DirectoryCreate) Apply(_ context.Context, ec *engine.ExecContext) error {
	path := op.Target().Path()
	if dirExists(path) {
		return nil
	}

	top := outermostMissing(path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return engine.NewPermanentError(fmt.Sprintf("failed to create directory %s", path), err).
			WithResource(path).
			WithOperation(string(KindDirectoryCreate))
	}
	op.created = top

	ec.Log().WithTarget(path).Debug("directory created")
	return nil
}

// Undo removes what Apply created.
func (op *DirectoryCreate) Undo(_ context.Context, ec *engine.ExecContext) error {
	if op.created == "" {
		return nil
	}
	if err := os.RemoveAll(op.created); err != nil {
		return fmt.Errorf("removing %s: %w", op.created, err)
	}
	ec.Log().WithTarget(op.Target().Path()).Debugf("removed %s", op.created)
	op.created = ""
	return nil
}

// outermostMissing returns the highest ancestor of path, path included, that
// does not exist yet.
func outermostMissing(path string) string {
	top := path
	for dir := filepath.Dir(path); dir != top; dir = filepath.Dir(dir) {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		top = dir
	}
	return top
}
