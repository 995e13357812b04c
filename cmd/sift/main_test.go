package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sift(t *testing.T, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var demo = []string{"--demo", "--timezone=-06:00", "--now=2015-01-02", "--log.level=error"}

func TestQuery(t *testing.T) {
	args := append([]string{"query"}, demo...)
	stdout, _, err := sift(t, append(args, "FROM organic yesterday today GROUP BY tk HAVING count() = 4 SELECT count()")...)
	require.NoError(t, err)
	assert.Equal(t, "a\t4\nc\t4\n", stdout)
}

func TestQueryDashC(t *testing.T) {
	args := append([]string{"query"}, demo...)
	stdout, _, err := sift(t, append(args, "-c", "FROM organic yesterday today", "-c", "SELECT count()")...)
	require.NoError(t, err)
	assert.Equal(t, "\t151\n", stdout)
}

func TestQueryError(t *testing.T) {
	args := append([]string{"query"}, demo...)
	_, _, err := sift(t, append(args, "FROM organix yesterday today SELECT count()")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnknownDatasetException")
}

func TestQueryNoText(t *testing.T) {
	_, _, err := sift(t, append([]string{"query"}, demo...)...)
	assert.EqualError(t, err, "no query given: use -c, -I, or an argument")
}

func TestCompileJSON(t *testing.T) {
	args := append([]string{"compile", "--json"}, demo...)
	stdout, _, err := sift(t, append(args, "FROM organic yesterday today GROUP BY tk SELECT count()")...)
	require.NoError(t, err)
	var plan struct {
		Datasets []struct {
			Name string `json:"name"`
		} `json:"datasets"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	require.Len(t, plan.Datasets, 1)
	assert.Equal(t, "organic", plan.Datasets[0].Name)
}

func TestDescribe(t *testing.T) {
	args := append([]string{"describe"}, demo...)
	stdout, _, err := sift(t, append(args, "FROM organic yesterday today SELECT count()")...)
	require.NoError(t, err)
	var info struct {
		Key      string `json:"cache_key"`
		Datasets []struct {
			Shards int   `json:"shards"`
			Docs   int64 `json:"docs"`
		} `json:"datasets"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Len(t, info.Key, 64)
	require.Len(t, info.Datasets, 1)
	assert.Equal(t, 24, info.Datasets[0].Shards)
	assert.EqualValues(t, 151, info.Datasets[0].Docs)
}

func TestQueryDirCache(t *testing.T) {
	args := append([]string{"query", "--cache=dir", "--cachedir=" + t.TempDir(), "--stats"}, demo...)
	args = append(args, "FROM organic yesterday today GROUP BY tk SELECT count()")
	for _, cached := range []bool{false, true} {
		stdout, stderr, err := sift(t, args...)
		require.NoError(t, err)
		assert.Equal(t, "a\t4\nb\t2\nc\t4\nd\t141\n", stdout)
		var stats struct {
			Cached bool `json:"cached"`
		}
		require.NoError(t, json.Unmarshal([]byte(stderr), &stats))
		assert.Equal(t, cached, stats.Cached)
	}
}
