/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// SQLSeeder executes the .sql files of a seed tree: first common/, then
// environments/<env>/. Files run in the order of their numeric prefix
// ("010_drivers.sql").
type SQLSeeder struct {
	fsys        fs.FS
	environment string
	logger      Logger
}

// SQLFileInfo describes a seed file.
type SQLFileInfo struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

// ExecutionResult contains the outcome of executing a single seed file.
type ExecutionResult struct {
	File         string
	Statements   int
	RowsAffected int64
	Duration     time.Duration
}

var fileOrderPattern = regexp.MustCompile(`^(\d+)_`)

func NewSQLSeeder(fsys fs.FS, environment string, logger Logger) *SQLSeeder {
	return &SQLSeeder{fsys: fsys, environment: environment, logger: logger}
}

// Seed executes every seed file through db, stopping at the first failure.
func (s *SQLSeeder) Seed(ctx context.Context, db bun.IDB) ([]ExecutionResult, error) {
	files, err := s.GetSQLFiles()
	if err != nil {
		return nil, err
	}
	results := make([]ExecutionResult, 0, len(files))
	for _, file := range files {
		res, err := s.executeFile(ctx, db, file)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("SQL seed file failed", "file", file.Path, "error", err)
			}
			return results, fmt.Errorf("SQL seed file %s: %w", file.Path, err)
		}
		if s.logger != nil {
			s.logger.Info("SQL seed file executed", "file", res.File, "statements", res.Statements, "rows_affected", res.RowsAffected)
		}
		results = append(results, res)
	}
	return results, nil
}

// GetSQLFiles lists the seed files in execution order.
func (s *SQLSeeder) GetSQLFiles() ([]SQLFileInfo, error) {
	common, err := s.getFilesFromDir("common", "common")
	if err != nil {
		return nil, err
	}
	var env []SQLFileInfo
	if s.environment != "" {
		env, err = s.getFilesFromDir(path.Join("environments", s.environment), s.environment)
		if err != nil {
			return nil, err
		}
	}
	sortFiles(common)
	sortFiles(env)
	return append(common, env...), nil
}

func sortFiles(files []SQLFileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
}

func (s *SQLSeeder) getFilesFromDir(dir, environment string) ([]SQLFileInfo, error) {
	if _, err := fs.Stat(s.fsys, dir); err != nil {
		return nil, nil
	}
	var files []SQLFileInfo
	err := fs.WalkDir(s.fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			return nil
		}
		files = append(files, SQLFileInfo{
			Path:        p,
			Name:        d.Name(),
			Order:       parseFileOrder(d.Name()),
			Environment: environment,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list seed files in %s: %w", dir, err)
	}
	return files, nil
}

func parseFileOrder(filename string) int {
	if m := fileOrderPattern.FindStringSubmatch(filename); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 999
}

func (s *SQLSeeder) executeFile(ctx context.Context, db bun.IDB, file SQLFileInfo) (ExecutionResult, error) {
	start := time.Now()
	content, err := fs.ReadFile(s.fsys, file.Path)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to read file: %w", err)
	}
	res := ExecutionResult{File: file.Path}
	for _, stmt := range splitSQLStatements(string(content)) {
		r, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return res, fmt.Errorf("statement %q: %w", stmt, err)
		}
		n, _ := r.RowsAffected()
		res.RowsAffected += n
		res.Statements++
	}
	res.Duration = time.Since(start)
	return res, nil
}

// splitSQLStatements splits on semicolons that end a line and drops
// "--" comment lines.
func splitSQLStatements(content string) []string {
	var statements []string
	var current strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			if stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";"); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}
	if stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";"); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}
