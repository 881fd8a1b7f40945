package fetcher

import (
	"strings"
	"testing"
)

// TestLocalDirName tests deterministic directory naming.
func TestLocalDirName(t *testing.T) {
	t.Parallel()

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()
		id := "https://github.com/example/tools.git"
		if LocalDirName(id) != LocalDirName(id) {
			t.Error("expected identical names for identical identifiers")
		}
	})

	t.Run("keeps a readable prefix", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			id     string
			prefix string
		}{
			{"https://github.com/example/tools.git", "tools-"},
			{"https://github.com/example/tools/", "tools-"},
			{"git@github.com:example/tools.git", "tools-"},
			{"https://gitlab.com/group/sub/My Repo", "My_Repo-"},
			{"/srv/git/project", "project-"},
		}
		for _, tt := range tests {
			if got := LocalDirName(tt.id); !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("LocalDirName(%q) = %q, expected prefix %q", tt.id, got, tt.prefix)
			}
		}
	})

	t.Run("distinct identifiers with the same last segment do not collide", func(t *testing.T) {
		t.Parallel()
		a := LocalDirName("https://github.com/a/tools")
		b := LocalDirName("https://github.com/b/tools")
		if a == b {
			t.Errorf("expected distinct names, both are %q", a)
		}
	})

	t.Run("never produces path separators", func(t *testing.T) {
		t.Parallel()
		for _, id := range []string{"https://x/../../etc", "..", "", "a\\b", "https://host/"} {
			name := LocalDirName(id)
			if strings.ContainsAny(name, "/\\") || name == "" || strings.HasPrefix(name, ".") {
				t.Errorf("LocalDirName(%q) = %q is not a safe directory name", id, name)
			}
		}
	})
}

// TestSSHURL tests the https to SSH rewrite.
func TestSSHURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://github.com/a/b", "git@github.com:a/b.git"},
		{"https://github.com/a/b.git", "git@github.com:a/b.git"},
		{"https://github.com/a/b/", "git@github.com:a/b.git"},
		{"https://gitlab.com/a/b", "https://gitlab.com/a/b"},
		{"git@github.com:a/b.git", "git@github.com:a/b.git"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := sshURL(tt.in); got != tt.want {
				t.Errorf("sshURL(%q) = %q, expected %q", tt.in, got, tt.want)
			}
		})
	}
}
