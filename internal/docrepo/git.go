package docrepo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit is one entry of a document's history.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Git is an FS whose writes are committed to the git repository containing
// the root directory.
type Git struct {
	*FS
	author string
	mu     sync.Mutex
}

func NewGit(root, docsDir, author string) *Git {
	if author == "" {
		author = "imageplan"
	}
	return &Git{FS: NewFS(root, docsDir), author: author}
}

// EnsureRepo initialises a repository at the root when none encloses it.
func (g *Git) EnsureRepo() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.open(); err == nil {
		return nil
	} else if !errors.Is(err, git.ErrRepositoryNotExists) {
		return err
	}
	if err := os.MkdirAll(g.root, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	if _, err := git.PlainInit(g.root, false); err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	return nil
}

// Write replaces document and records the change as a single commit.
func (g *Git) Write(document, content string) error {
	_, err := g.WriteAndCommit(document, content, fmt.Sprintf("Insert image reference into %s", document))
	return err
}

func (g *Git) WriteAndCommit(document, content, message string) (Commit, error) {
	path, err := g.FS.write(document, content)
	if err != nil {
		return Commit{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	repo, err := g.open()
	if err != nil {
		return Commit{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}
	rel, err := relativeTo(worktree.Filesystem.Root(), path)
	if err != nil {
		return Commit{}, err
	}
	if _, err := worktree.Add(rel); err != nil {
		return Commit{}, fmt.Errorf("git add %s: %w", rel, err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.author,
			Email: fmt.Sprintf("%s@imageplan.local", sanitizeEmail(g.author)),
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return Commit{}, nil
	}
	if err != nil {
		return Commit{}, fmt.Errorf("commit %s: %w", rel, err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// History lists the commits touching document, newest first.
func (g *Git) History(document string, limit int) ([]Commit, error) {
	path, err := g.Resolve(document)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	repo, err := g.open()
	if err != nil {
		return nil, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	rel, err := relativeTo(worktree.Filesystem.Root(), path)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (g *Git) open() (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(g.root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func relativeTo(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	// Temp dirs on some systems sit behind a symlink.
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", fmt.Errorf("locate %s in worktree: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
