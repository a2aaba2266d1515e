package monitor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDeclaredPathsRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("y"), 0o644); err != nil {
		t.Fatalf("write sub/b.txt: %v", err)
	}

	declared := []MonitorPath{
		SinglePath{FileKind: FileExistsKind, DirKind: DirNotExists, Path: "a"},
		GlobPath{
			FileKind: FileModTimeKind,
			DirKind:  DirNotExists,
			Glob: RootedGlob{
				Root: FilePathRoot{Kind: RootRelative},
				Glob: GlobDir{Pieces: []string{"*"}, SubGlob: GlobFile{Pieces: []string{"*.txt"}}},
			},
		},
	}

	snapshot, err := buildSnapshot(nil, FileHashCache{}, root, declared)
	if err != nil {
		t.Fatalf("buildSnapshot: %v", err)
	}

	got := snapshot.DeclaredPaths()
	if len(got) != len(declared) {
		t.Fatalf("got %d declared paths, want %d", len(got), len(declared))
	}

	single, ok := got[0].(SinglePath)
	if !ok || single.Path != "a" || single.FileKind != FileExistsKind {
		t.Errorf("got[0] = %#v, want reconstructed SinglePath for %q", got[0], "a")
	}

	globPath, ok := got[1].(GlobPath)
	if !ok {
		t.Fatalf("got[1] = %#v, want GlobPath", got[1])
	}
	dir, ok := globPath.Glob.Glob.(GlobDir)
	if !ok {
		t.Fatalf("reconstructed glob = %#v, want GlobDir", globPath.Glob.Glob)
	}
	if _, ok := dir.SubGlob.(GlobFile); !ok {
		t.Errorf("reconstructed subglob = %#v, want GlobFile", dir.SubGlob)
	}
}

func TestGlobStateDirsChildrenSortedAcrossDepth(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b", "a"} {
		full := filepath.Join(root, name)
		if err := os.Mkdir(full, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		for _, child := range []string{"y", "x"} {
			if err := os.Mkdir(filepath.Join(full, child), 0o755); err != nil {
				t.Fatalf("mkdir %s/%s: %v", name, child, err)
			}
		}
	}

	gs, err := buildGlobRel(nil, nil, root, "",
		GlobDir{Pieces: []string{"*"}, SubGlob: GlobDir{Pieces: []string{"*"}, SubGlob: GlobDirTrailing{}}},
		FileNotExists, DirNotExists)
	if err != nil {
		t.Fatalf("buildGlobRel: %v", err)
	}

	top, ok := gs.(GlobStateDirs)
	if !ok {
		t.Fatalf("got %T, want GlobStateDirs", gs)
	}
	if top.Children[0].Name != "a" || top.Children[1].Name != "b" {
		t.Errorf("top-level children unsorted: %v", top.Children)
	}

	for _, c := range top.Children {
		sub, ok := c.State.(GlobStateDirs)
		if !ok {
			t.Fatalf("child %q state = %T, want GlobStateDirs", c.Name, c.State)
		}
		if sub.Children[0].Name != "x" || sub.Children[1].Name != "y" {
			t.Errorf("nested children under %q unsorted: %v", c.Name, sub.Children)
		}
	}
}
