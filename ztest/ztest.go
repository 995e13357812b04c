// Package ztest runs formulaic tests ("ztests") that can be (1) run in-process
// against the built-in organic dataset or (2) run as a bash script invoking
// the sift executable.  Case (1) is easier to debug by simply running
// "go test".
//
// In the query style, ztest runs an IQL query and checks its rows, its
// error, or its warnings.  A query-style test is defined in a YAML file.
//
//	query: FROM organic yesterday today GROUP BY tk SELECT count()
//
//	output: |
//	  a	4
//	  b	2
//	  c	4
//	  d	141
//
// Rows are written as tab-separated values, keys first.  Queries run with
// relative times anchored at midnight of 2015-01-02 in the organic
// dataset's time zone unless now or timezone say otherwise.
//
//	query: FROM organic yesterday today GROUP BY time(7m) SELECT count()
//
//	error: Bucket range should be a multiple of the interval
//
// An expected error matches when the actual error contains it.  When
// warnings is present the warnings of the query must equal it.
//
// Alternatively, tests can be configured to run as shell scripts.  Scripts
// are executed by "bash -e -o pipefail", and a nonzero shell exit code
// causes a test failure.  The yaml sets up a collection of input files and
// stdin, the script runs, and the test driver compares expected output
// files, stdout, and stderr with data in the yaml spec.
//
//	inputs:
//	  - name: query.iql
//	    data: |
//	      FROM organic yesterday today
//	      SELECT count()
//
//	script: |
//	  sift query --demo --timezone=-06:00 --now=2015-01-02 -I query.iql
//
//	outputs:
//	  - name: stdout
//	    data: "\t151\n"
//
// Each input and output has a name.  For inputs, a file (source) or inline
// data (data) may be specified.  If no data is specified, then a file of
// the same name as the name field is looked for in the same directory as
// the yaml file.  For outputs, a "regexp" string may be given instead of
// expected data.
//
// If the ZTEST_PATH environment variable is unset or empty, Run runs the
// query-style tests in the current process and skips the script tests.
// Otherwise, Run runs only the script tests, with ZTEST_PATH prepended to
// PATH.
//
// In-process queries all share one collision-checking cache.  Queries
// always execute, and two tests whose queries compute the same cache key
// must produce the same result or both report a CacheCollisionException.
//
// Tests of either style can be skipped by setting the skip field to a
// non-empty string.
package ztest

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/brimdata/sift/backend/memory"
	"github.com/brimdata/sift/cache"
	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/semantic"
	"github.com/brimdata/sift/service"
	"github.com/brimdata/sift/sio/tsvio"
	"github.com/goccy/go-yaml"
	yamlparser "github.com/goccy/go-yaml/parser"
	"github.com/pmezard/go-difflib/difflib"
)

var collisions = cache.NewCollision(cache.Nop{})

func ShellPath() string {
	return os.Getenv("ZTEST_PATH")
}

type Bundle struct {
	TestName string
	FileName string
	Test     *ZTest
	Error    error
}

func Load(dirname string) ([]Bundle, error) {
	var bundles []Bundle
	fileinfos, err := os.ReadDir(dirname)
	if err != nil {
		return nil, err
	}
	for _, fi := range fileinfos {
		filename := fi.Name()
		const dotyaml = ".yaml"
		if !strings.HasSuffix(filename, dotyaml) {
			continue
		}
		testname := strings.TrimSuffix(filename, dotyaml)
		filename = filepath.Join(dirname, filename)
		zt, err := FromYAMLFile(filename)
		bundles = append(bundles, Bundle{testname, filename, zt, err})
	}
	return bundles, nil
}

// Run runs the ztests in the directory named dirname.  For each file f.yaml in
// the directory, Run calls FromYAMLFile to load a ztest and then runs it in
// subtest named f.
func Run(t *testing.T, dirname string) {
	shellPath := ShellPath()
	bundles, err := Load(dirname)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bundles {
		t.Run(b.TestName, func(t *testing.T) {
			t.Parallel()
			if b.Error != nil {
				t.Fatalf("%s: %s", b.FileName, b.Error)
			}
			b.Test.Run(t, shellPath, b.FileName)
		})
	}
}

type File struct {
	// Name is the name of the file with respect to the directory in which
	// the test script runs.  Name can also be stdin (for inputs) or stdout
	// or stderr (for outputs).
	Name   string  `yaml:"name"`
	Data   *string `yaml:"data,omitempty"`
	Source string  `yaml:"source,omitempty"`
	// Re is a regular expression describing the contents of the file,
	// which is only applicable to output files.
	Re string `yaml:"regexp,omitempty"`
}

func (f *File) check() error {
	if f.Data != nil && f.Source != "" {
		return fmt.Errorf("%s: must specify at most one of data or source", f.Name)
	}
	return nil
}

func (f *File) load(dir string) ([]byte, *regexp.Regexp, error) {
	if f.Data != nil {
		return []byte(*f.Data), nil, nil
	}
	if f.Source != "" {
		b, err := os.ReadFile(filepath.Join(dir, f.Source))
		return b, nil, err
	}
	if f.Re != "" {
		re, err := regexp.Compile(f.Re)
		return nil, re, err
	}
	b, err := os.ReadFile(filepath.Join(dir, f.Name))
	if err == nil {
		return b, nil, nil
	}
	if os.IsNotExist(err) {
		err = fmt.Errorf("%s: no data source", f.Name)
	}
	return nil, nil, err
}

// ZTest defines a ztest.
type ZTest struct {
	Skip string `yaml:"skip,omitempty"`

	// For query-style tests.
	Query      string    `yaml:"query,omitempty"`
	Dialect    string    `yaml:"dialect,omitempty"`
	Timezone   string    `yaml:"timezone,omitempty"`
	Now        string    `yaml:"now,omitempty"`
	Options    []string  `yaml:"options,omitempty"`
	GroupLimit int       `yaml:"grouplimit,omitempty"`
	RowLimit   int       `yaml:"rowlimit,omitempty"`
	Header     bool      `yaml:"header,omitempty"`
	Output     string    `yaml:"output,omitempty"`
	Error      string    `yaml:"error,omitempty"`
	Warnings   *[]string `yaml:"warnings,omitempty"`

	// For script-style tests.
	Script  string   `yaml:"script,omitempty"`
	Inputs  []File   `yaml:"inputs,omitempty"`
	Outputs []File   `yaml:"outputs,omitempty"`
	Env     []string `yaml:"env,omitempty"`
}

func (z *ZTest) check() error {
	if z.Script != "" {
		if z.Outputs == nil {
			return errors.New("outputs field missing in a sh test")
		}
		for _, f := range z.Inputs {
			if err := f.check(); err != nil {
				return err
			}
			if f.Re != "" {
				return fmt.Errorf("%s: cannot use regexp in an input", f.Name)
			}
		}
		for _, f := range z.Outputs {
			if err := f.check(); err != nil {
				return err
			}
		}
	} else if z.Query == "" {
		return errors.New("either a query field or script field must be present")
	}
	for _, opt := range z.Options {
		switch opt {
		case "nocache", "lenient", "nowarnings":
		default:
			return fmt.Errorf("unknown option %q", opt)
		}
	}
	return nil
}

// FromYAMLFile loads a ZTest from the YAML file named filename.
func FromYAMLFile(filename string) (*ZTest, error) {
	f, err := yamlparser.ParseFile(filename, 0)
	if err != nil {
		return nil, err
	}
	if len(f.Docs) != 1 {
		return nil, errors.New("file must contain one YAML document")
	}
	var z ZTest
	if err := yaml.NodeToValue(f.Docs[0].Body, &z, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	return &z, nil
}

func (z *ZTest) ShouldSkip(path string) string {
	switch {
	case z.Script != "" && path == "":
		return "script test on in-process run"
	case z.Query != "" && path != "":
		return "in-process test on script run"
	case z.Skip != "":
		return z.Skip
	}
	return ""
}

func (z *ZTest) RunScript(ctx context.Context, shellPath, testDir, tempDir string) error {
	if err := z.check(); err != nil {
		return fmt.Errorf("bad yaml format: %w", err)
	}
	return runsh(ctx, shellPath, testDir, tempDir, z)
}

func (z *ZTest) RunInternal(ctx context.Context) error {
	if err := z.check(); err != nil {
		return fmt.Errorf("bad yaml format: %w", err)
	}
	out, warnings, err := z.runInternal(ctx)
	var outDiffErr, errDiffErr, warnDiffErr error
	if z.Output != out {
		outDiffErr = diffErr("output", z.Output, out)
	}
	switch {
	case err == nil && z.Error != "":
		errDiffErr = fmt.Errorf("expected error %q but the query succeeded", z.Error)
	case err != nil && (z.Error == "" || !strings.Contains(err.Error(), strings.TrimSpace(z.Error))):
		errDiffErr = diffErr("error", z.Error, err.Error()+"\n")
	}
	if z.Warnings != nil && !slices.Equal(*z.Warnings, warnings) {
		warnDiffErr = diffErr("warnings", lines(*z.Warnings), lines(warnings))
	}
	return errors.Join(outDiffErr, errDiffErr, warnDiffErr)
}

func lines(s []string) string {
	var b strings.Builder
	for _, line := range s {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// runInternal runs the query against the organic dataset and returns its
// rows as TSV along with its warnings.
func (z *ZTest) runInternal(ctx context.Context) (string, []string, error) {
	cfg := service.DefaultConfig()
	cfg.Timezone = memory.OrganicZone.String()
	if z.Timezone != "" {
		cfg.Timezone = z.Timezone
	}
	if z.GroupLimit > 0 {
		cfg.GroupLimit = z.GroupLimit
	}
	if z.RowLimit > 0 {
		cfg.RowLimit = z.RowLimit
	}
	if z.Dialect != "" {
		cfg.Dialect = z.Dialect
	}
	s, err := service.New(cfg, nil, catalog.NewStore(memory.OrganicCatalog()), memory.Organic(), collisions, nil)
	if err != nil {
		return "", nil, err
	}
	loc, err := semantic.ParseLocation(cfg.Timezone)
	if err != nil {
		return "", nil, err
	}
	now := time.Date(2015, 1, 2, 0, 0, 0, 0, loc)
	if z.Now != "" {
		if now, err = dateparse.ParseIn(z.Now, loc); err != nil {
			return "", nil, err
		}
	}
	req := service.Request{
		Query:      z.Query,
		Now:        now,
		NoCache:    slices.Contains(z.Options, "nocache"),
		Lenient:    slices.Contains(z.Options, "lenient"),
		NoWarnings: slices.Contains(z.Options, "nowarnings"),
	}
	resp, err := s.Run(ctx, req)
	if err != nil {
		return "", nil, err
	}
	var opts tsvio.WriterOpts
	if z.Header {
		opts.Header = resp.Names
	}
	var buf bytes.Buffer
	w := tsvio.NewWriter(tsvio.NopCloser(&buf), opts)
	for _, row := range resp.Rows {
		if err := w.Write(row); err != nil {
			return "", nil, err
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, err
	}
	return buf.String(), resp.Warnings, nil
}

func (z *ZTest) Run(t *testing.T, path, filename string) {
	if msg := z.ShouldSkip(path); msg != "" {
		t.Skip("skipping test:", msg)
	}
	var err error
	if z.Script != "" {
		err = z.RunScript(t.Context(), path, filepath.Dir(filename), t.TempDir())
	} else {
		err = z.RunInternal(t.Context())
	}
	if err != nil {
		t.Fatalf("%s: %s", filename, err)
	}
}

func diffErr(name, expected, actual string) error {
	if !utf8.ValidString(expected) {
		expected = hex.Dump([]byte(expected))
		actual = hex.Dump([]byte(actual))
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		FromFile: "expected",
		B:        difflib.SplitLines(actual),
		ToFile:   "actual",
		Context:  5,
	})
	if err != nil {
		panic("ztest: " + err.Error())
	}
	return fmt.Errorf("expected and actual %s differ:\n%s", name, diff)
}

func runsh(ctx context.Context, path, testDir, tempDir string, zt *ZTest) error {
	var stdin io.Reader
	for _, f := range zt.Inputs {
		b, _, err := f.load(testDir)
		if err != nil {
			return err
		}
		if f.Name == "stdin" {
			stdin = bytes.NewReader(b)
			continue
		}
		if err := os.WriteFile(filepath.Join(tempDir, f.Name), b, 0644); err != nil {
			return err
		}
	}
	stdout, stderr, err := RunShell(ctx, tempDir, path, zt.Script, stdin, zt.Env)
	if err != nil {
		return fmt.Errorf("script failed: %w\n=== stdout ===\n%s=== stderr ===\n%s",
			err, stdout, stderr)
	}
	for _, f := range zt.Outputs {
		var actual string
		switch f.Name {
		case "stdout":
			actual = stdout
		case "stderr":
			actual = stderr
		default:
			b, err := os.ReadFile(filepath.Join(tempDir, f.Name))
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			actual = string(b)
		}
		expected, expectedRE, err := f.load(testDir)
		if err != nil {
			return err
		}
		if expected != nil && string(expected) != actual {
			return diffErr(f.Name, string(expected), actual)
		}
		if expectedRE != nil && !expectedRE.MatchString(actual) {
			return fmt.Errorf("%s: regexp %q does not match %q", f.Name, expectedRE, actual)
		}
	}
	return nil
}

// RunShell runs script with bash in dir, with path prepended to PATH.
func RunShell(ctx context.Context, dir, path, script string, stdin io.Reader, env []string) (string, string, error) {
	scriptFile := filepath.Join(dir, "_script.sh")
	if err := os.WriteFile(scriptFile, []byte(script), 0644); err != nil {
		return "", "", err
	}
	cmd := exec.CommandContext(ctx, "bash", "-e", "-o", "pipefail", scriptFile)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Env = append(cmd.Env, "PATH="+path+string(os.PathListSeparator)+os.Getenv("PATH"))
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
