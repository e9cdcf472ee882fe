// Package gitrepo reads and changes local repository metadata with go-git:
// structural validity, initialization, local branches and remotes.
package gitrepo
