package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// EntryKind distinguishes how a dictionary entry joins surrounding text.
type EntryKind int

const (
	KindChord EntryKind = iota
	KindException
	KindPrefix
	KindSuffix
)

// Entry is one resolved dictionary mapping.
type Entry struct {
	Output string
	Kind   EntryKind
}

// Library is an immutable snapshot of all loaded chord dictionaries.
// It is never mutated after Load returns; replacing it is a whole
// pointer swap, so an in-flight lookup sees a fully-old or fully-new
// view, never a mix.
type Library struct {
	Name     string
	Language string
	Version  string

	chords     map[string]string
	exceptions map[string]string
	prefixes   map[string]string
	suffixes   map[string]string
}

func newLibrary() *Library {
	return &Library{
		chords:     make(map[string]string),
		exceptions: make(map[string]string),
		prefixes:   make(map[string]string),
		suffixes:   make(map[string]string),
	}
}

// Len returns the total number of entries across all sections.
func (l *Library) Len() int {
	return len(l.chords) + len(l.exceptions) + len(l.prefixes) + len(l.suffixes)
}

// Resolve looks up a canonical chord string. Lookup is exact-match
// only, in the order chords, exceptions, then affixes.
func (l *Library) Resolve(chord string) (Entry, bool) {
	if out, ok := l.chords[chord]; ok {
		return Entry{Output: out, Kind: KindChord}, true
	}
	if out, ok := l.exceptions[chord]; ok {
		return Entry{Output: out, Kind: KindException}, true
	}
	if out, ok := l.prefixes[chord]; ok {
		return Entry{Output: out, Kind: KindPrefix}, true
	}
	if out, ok := l.suffixes[chord]; ok {
		return Entry{Output: out, Kind: KindSuffix}, true
	}
	return Entry{}, false
}

// Dictionary owns the current Library snapshot and the directory it is
// loaded from. Reload builds a fresh snapshot and publishes it with a
// single atomic store; readers keep using whatever snapshot they
// already hold.
type Dictionary struct {
	dir  string
	log  *zap.SugaredLogger
	snap atomic.Pointer[Library]
}

// NewDictionary creates a Dictionary starting from an empty snapshot.
func NewDictionary(dir string, log *zap.SugaredLogger) *Dictionary {
	d := &Dictionary{dir: dir, log: log}
	d.snap.Store(newLibrary())
	return d
}

// Snapshot returns the current immutable library.
func (d *Dictionary) Snapshot() *Library {
	return d.snap.Load()
}

// Reload reads all *.zc files from the dictionary directory in lexical
// order, merges them (later files win on key-set collision) and swaps
// the snapshot. On error the previous snapshot stays in place.
func (d *Dictionary) Reload() error {
	lib, err := d.load()
	if err != nil {
		return err
	}
	d.snap.Store(lib)
	return nil
}

func (d *Dictionary) load() (*Library, error) {
	files, err := filepath.Glob(filepath.Join(d.dir, "*.zc"))
	if err != nil {
		return nil, fmt.Errorf("glob dictionaries: %w", err)
	}
	sort.Strings(files)

	lib := newLibrary()
	for _, f := range files {
		fh, err := os.Open(f)
		if err != nil {
			// One unreadable file is not fatal; the rest still load.
			d.log.Warnf("skip dictionary %s: %v", f, err)
			continue
		}
		d.parse(fh, filepath.Base(f), lib)
		fh.Close()
	}
	if len(files) == 0 {
		d.log.Warnf("no *.zc dictionaries in %s", d.dir)
	}
	return lib, nil
}

// parse reads one .zc dictionary into lib. The format is line based:
//
//	name: English
//	[chords]
//	t+h => through   # comment
//
// Malformed lines are skipped with a warning; parsing never fails a
// whole file.
func (d *Dictionary) parse(r io.Reader, name string, lib *Library) {
	var section map[string]string

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			switch strings.ToLower(line[1 : len(line)-1]) {
			case "chords":
				section = lib.chords
			case "exceptions":
				section = lib.exceptions
			case "prefixes":
				section = lib.prefixes
			case "suffixes":
				section = lib.suffixes
			default:
				d.log.Warnf("%s:%d: unknown section %s", name, lineNo, line)
				section = nil
			}
			continue
		}

		if key, value, ok := strings.Cut(line, "=>"); ok {
			if section == nil {
				d.log.Warnf("%s:%d: mapping outside section", name, lineNo)
				continue
			}
			value, _, _ = strings.Cut(value, "#") // strip inline comment
			codes, err := ParseChordKeys(key)
			if err != nil {
				d.log.Warnf("%s:%d: %v", name, lineNo, err)
				continue
			}
			section[CanonicalChord(codes)] = strings.TrimSpace(value)
			continue
		}

		if key, value, ok := strings.Cut(line, ":"); ok {
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "name":
				lib.Name = strings.TrimSpace(value)
			case "language":
				lib.Language = strings.TrimSpace(value)
			case "version":
				lib.Version = strings.TrimSpace(value)
			}
			continue
		}

		d.log.Warnf("%s:%d: ignoring line %q", name, lineNo, line)
	}
	if err := sc.Err(); err != nil {
		d.log.Warnf("read %s: %v", name, err)
	}
}
