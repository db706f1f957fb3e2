package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Commit is one entry from a repository's history.
type Commit struct {
	Hash    string
	Author  string
	Subject string
	When    time.Time
}

// Clone performs a shallow clone of url into a fresh temporary directory,
// bounded by timeout. The returned cleanup removes the directory and must be
// called by the owner. The clone never invokes a shell: arguments are passed
// directly to the git binary.
func (p *Pool) Clone(ctx context.Context, url string, depth int, timeout time.Duration) (string, func(), error) {
	dir, err := os.MkdirTemp("", "tribunal-clone-*")
	if err != nil {
		return "", nil, fmt.Errorf("create clone dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	err = p.Run(ctx, func() error {
		cloneCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(cloneCtx, "git", "clone",
			"--depth", strconv.Itoa(depth), "--no-tags", url, dir)
		cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("git clone %s: %w: %s", url, err, firstLine(out))
		}
		return nil
	})
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return dir, cleanup, nil
}

// Log returns the commit history of a cloned repository, newest first.
func (p *Pool) Log(ctx context.Context, dir string, limit int) ([]Commit, error) {
	var commits []Commit
	err := p.Run(ctx, func() error {
		cmd := exec.CommandContext(ctx, "git", "-C", dir, "log",
			"--pretty=format:%H%x1f%an%x1f%s%x1f%aI", "-n", strconv.Itoa(limit))
		out, err := cmd.Output()
		if err != nil {
			return fmt.Errorf("git log: %w", err)
		}
		commits = parseLog(string(out))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

func parseLog(out string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		c := Commit{Hash: fields[0], Author: fields[1], Subject: fields[2]}
		if t, err := time.Parse(time.RFC3339, fields[3]); err == nil {
			c.When = t
		}
		commits = append(commits, c)
	}
	return commits
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
