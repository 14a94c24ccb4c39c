// Package ingest loads the tidy input tables of a run from a directory of
// CSV files. Each file becomes one table named after the file stem, so
// TIDY_5_1_ACTORES.csv registers TIDY_5_1_ACTORES.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/table"
)

// ErrNoInputs is returned when the directory holds no CSV file.
var ErrNoInputs = errors.New("no csv files in input directory")

// Files lists the CSV files of dir, sorted by name.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// TableName derives the table name from a file path.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadDir reads every CSV file in dir concurrently and registers the
// tables with reg in file-name order. Registration diagnostics are
// returned; unreadable files are errors.
func LoadDir(ctx context.Context, dir string, reg *table.Registry) (diag.List, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInputs, dir)
	}

	tables := make([]*table.Table, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
			}
			t, err := Parse(TableName(path), data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ds diag.List
	for _, t := range tables {
		ds.Extend(reg.Register(t))
	}
	return ds, nil
}

// Parse reads CSV content with a header row. Blank cells become null,
// blank lines are skipped and short records are padded with nulls. A
// leading UTF-8 byte order mark is dropped. A semicolon delimiter is used
// when the header holds more semicolons than commas.
func Parse(name string, content []byte) (*table.Table, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = delimiter(content)

	header, err := reader.Read()
	if err == io.EOF {
		return table.Empty(name), nil
	}
	if err != nil {
		return nil, err
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
		if columns[i] == "" {
			columns[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	b := table.NewBuilder(name, columns...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(record) {
			continue
		}
		row := make(table.Row, len(columns))
		for i, c := range columns {
			if i >= len(record) || strings.TrimSpace(record[i]) == "" {
				row[c] = nil
				continue
			}
			row[c] = strings.TrimSpace(record[i])
		}
		b.Add(row)
	}
	return b.Build(), nil
}

func delimiter(content []byte) rune {
	line, _, _ := bytes.Cut(content, []byte("\n"))
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
