package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	ldom "arledger/internal/services/ledger/domain"
)

// Dir reads records below Root
// .json files hold one record, .ndjson/.jsonl files hold one per line and may be gzip compressed
// paths are reported relative to Root with slashes so the first segment names the month folder
type Dir struct {
	fsys fs.FS
	root string
	log  *logger.Logger
}

var _ ldom.Source = (*Dir)(nil)

// NewDir reads from a directory on disk
func NewDir(root string) *Dir {
	return &Dir{fsys: os.DirFS(root), root: root, log: logger.Named("records")}
}

// NewFS reads from any fs.FS, used by tests and embedded fixtures
func NewFS(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys, root: ".", log: logger.Named("records")}
}

// Scan walks the tree in lexical order, only an unreachable root is an error
func (d *Dir) Scan(ctx context.Context) ([]ldom.SourceItem, error) {
	if _, err := fs.Stat(d.fsys, "."); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "records: root %s", d.root)
	}
	var files []string
	err := fs.WalkDir(d.fsys, ".", func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			d.log.Warn().Err(err).Str("path", p).Msg("unreadable entry skipped")
			if e != nil && e.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if e.IsDir() {
			if p != "." && strings.HasPrefix(e.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if kindOf(p) != kindNone {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "records: walk %s", d.root)
	}
	sort.Strings(files)

	var items []ldom.SourceItem
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, d.read(f)...)
	}
	d.log.Debug().Int("files", len(files)).Int("items", len(items)).Msg("record scan finished")
	return items, nil
}

type kind int

const (
	kindNone kind = iota
	kindSingle
	kindLines
	kindLinesGzip
)

func kindOf(p string) kind {
	switch n := strings.ToLower(path.Base(p)); {
	case strings.HasPrefix(n, "."):
		return kindNone
	case strings.HasSuffix(n, ".ndjson.gz"), strings.HasSuffix(n, ".jsonl.gz"):
		return kindLinesGzip
	case strings.HasSuffix(n, ".ndjson"), strings.HasSuffix(n, ".jsonl"):
		return kindLines
	case strings.HasSuffix(n, ".json"):
		return kindSingle
	}
	return kindNone
}

func (d *Dir) read(p string) []ldom.SourceItem {
	switch kindOf(p) {
	case kindSingle:
		return []ldom.SourceItem{d.readSingle(p)}
	case kindLines:
		return d.readLines(p, false)
	case kindLinesGzip:
		return d.readLines(p, true)
	}
	return nil
}

func (d *Dir) readSingle(p string) ldom.SourceItem {
	b, err := fs.ReadFile(d.fsys, p)
	if err != nil {
		return ldom.SourceItem{Path: p, Err: perr.Wrapf(err, perr.ErrorCodeUnavailable, "read %s", p)}
	}
	var w Wire
	if err := json.Unmarshal(b, &w); err != nil {
		return ldom.SourceItem{Path: p, Err: perr.Wrapf(err, perr.ErrorCodeJSON, "decode %s", p)}
	}
	return item(p, w)
}

func (d *Dir) readLines(p string, compressed bool) []ldom.SourceItem {
	f, err := d.fsys.Open(p)
	if err != nil {
		return []ldom.SourceItem{{Path: p, Err: perr.Wrapf(err, perr.ErrorCodeUnavailable, "open %s", p)}}
	}
	lr, err := newLineReader(f, compressed)
	if err != nil {
		return []ldom.SourceItem{{Path: p, Err: perr.Wrapf(err, perr.ErrorCodeUnavailable, "open %s", p)}}
	}
	defer func() { _ = lr.Close() }()

	var out []ldom.SourceItem
	for {
		var w Wire
		n, err := lr.Next(&w)
		if errors.Is(err, io.EOF) {
			return out
		}
		ref := fmt.Sprintf("%s#%d", p, n)
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syn), errors.As(err, &typ):
			out = append(out, ldom.SourceItem{Path: ref, Err: perr.Wrapf(err, perr.ErrorCodeJSON, "decode %s", ref)})
			continue
		case err != nil:
			// the scanner cannot resume after a read error
			return append(out, ldom.SourceItem{Path: ref, Err: perr.Wrapf(err, perr.ErrorCodeUnavailable, "read %s", ref)})
		}
		if w.SourcePath == "" {
			w.SourcePath = ref
		}
		out = append(out, item(w.SourcePath, w))
	}
}

func item(p string, w Wire) ldom.SourceItem {
	if w.SourcePath == "" {
		w.SourcePath = p
	}
	rec, err := w.Record()
	if err != nil {
		return ldom.SourceItem{Path: w.SourcePath, Err: err}
	}
	return ldom.SourceItem{Path: rec.SourcePath, Record: rec}
}
