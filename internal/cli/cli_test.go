package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/devflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args after resetting flag-backed globals.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = defaultConfigPath
	debugMode = false
	serverURL = ""
	outputFormat = "text"
	queryLimit = models.DefaultQueryLimit
	ingestTitle, ingestURL = "", ""
	ingestRecursive, ingestScrape = true, false
	ingestCount = 5

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
embedding:
  provider: mock
  dimensions: 8
vector:
  backend: persistent
chunking:
  chunk_size: 5
  chunk_overlap: 1
storage:
  database_path: ./data/devflow.db
  index_path: ./data/vectors.bin
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-version-1.0.0"
	defer func() { version = original }()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "devflow version test-version-1.0.0")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute(t, "version", "--output", "yaml")
	assert.Error(t, err)
}

func TestLocalIngestQueryAndDelete(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "ingest", "text", "--title", "Fox",
		"the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)
	assert.Contains(t, out, "3 chunk(s)")

	out, err = execute(t, "--config", cfgPath, "query", "dog", "-n", "1", "-o", "json")
	require.NoError(t, err)
	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "dog", resp.Results[0].Text)
	assert.Equal(t, "Fox", resp.Results[0].Title)

	out, err = execute(t, "--config", cfgPath, "sources", "list", "-o", "json")
	require.NoError(t, err)
	var sources []*models.Source
	require.NoError(t, json.Unmarshal([]byte(out), &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, models.SourceManual, sources[0].Type)

	out, err = execute(t, "--config", cfgPath, "stats", "-o", "json")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.VectorCount)
	assert.Equal(t, 1, report.IndexedSources)

	out, err = execute(t, "--config", cfgPath, "sources", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "3 chunks removed")

	_, err = execute(t, "--config", cfgPath, "sources", "delete", "1")
	assert.Error(t, err)
	_, err = execute(t, "--config", cfgPath, "sources", "delete", "one")
	assert.Error(t, err)
}

func TestLocalIngestDirectory(t *testing.T) {
	cfgPath := writeTestConfig(t)
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.md"), []byte("alpha beta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "b.txt"), []byte("gamma delta"), 0o644))

	out, err := execute(t, "--config", cfgPath, "ingest", "dir", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "2 document(s)")
}

func TestRemoteQueryAndWatch(t *testing.T) {
	var gotQuery models.SearchQuery
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotQuery)
		_ = json.NewEncoder(w).Encode(models.QueryResponse{
			Query:   gotQuery.Query,
			Results: []*models.RetrievedChunk{{ID: "c1", Text: "remote hit", Title: "Doc", Rank: 1}},
			Total:   1,
		})
	})
	mux.HandleFunc("/api/watch/directories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string][]string{"directories": {"/srv/docs"}})
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not watched"})
		}
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	out, err := execute(t, "--server", ts.URL, "query", "machine", "learning", "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, "machine learning", gotQuery.Query)
	assert.Equal(t, 3, gotQuery.NResults)
	assert.Contains(t, out, "remote hit")
	assert.Contains(t, out, "Found 1 results")

	out, err = execute(t, "--server", ts.URL, "watch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/srv/docs")

	dir := t.TempDir()
	out, err = execute(t, "--server", ts.URL, "watch", "add", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Added: "+dir)

	_, err = execute(t, "--server", ts.URL, "watch", "remove", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not watched")
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"machine", "learning"}, "machine learning"},
		{[]string{"machine learning"}, "machine learning"},
		{[]string{"  padded  "}, "padded"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildQuery(tt.args))
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	origWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(origWd) }()
	require.NoError(t, os.Chdir(dir))

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	assert.Equal(t, configPathCanon, resolvedCanon)
	assert.True(t, cfg.Debug, "debug should be true from cwd config.yaml")
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, resolved, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)

	_, _, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
