package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestNutritionCommandJSON(t *testing.T) {
	out, err := execute(t, "nutrition",
		"--age", "25", "--gender", "male", "--height", "170", "--weight", "70",
		"--activity", "moderately active", "--goal", "maintain", "--json")
	require.NoError(t, err)

	var summary domain.NutritionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.InDelta(t, 1642.5, summary.BMR, 0.01)
	assert.InDelta(t, 2545.9, summary.TDEE, 0.1)
	assert.Equal(t, domain.MacroBalanced, summary.MacroSplit)
	assert.Equal(t, 0, summary.Adjustment)
}

func TestNutritionCommandText(t *testing.T) {
	out, err := execute(t, "nutrition",
		"--age", "30", "--gender", "perempuan", "--height", "160", "--weight", "55",
		"--goal", "turun berat badan", "--macro-split", "high_protein")
	require.NoError(t, err)
	assert.Contains(t, out, "BMR:")
	assert.Contains(t, out, "Macros (high_protein)")
}

func TestNutritionCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "nutrition", "--age", "25")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")

	_, err = execute(t, "nutrition", "--age", "25", "--gender", "robot", "--height", "170", "--weight", "70")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown gender")
}

func TestModelsCommand(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:3b","details":{"family":"llama","parameter_size":"3.2B","quantization_level":"Q4_K_M"}}]}`))
	}))
	defer backend.Close()

	t.Setenv("NUTRIBOT_LLM_PROVIDER", "ollama")
	t.Setenv("NUTRIBOT_LLM_BASE_URL", backend.URL)
	t.Setenv("NUTRIBOT_LLM_DEFAULT_MODEL", "llama3.2:3b")
	t.Setenv("NUTRIBOT_LLM_SUMMARIZATION_MODEL", "qwen2.5:0.5b")

	out, err := execute(t, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "llama3.2:3b")
	assert.Contains(t, out, "Q4_K_M")
	assert.Contains(t, out, "default model llama3.2:3b: installed")
	assert.Contains(t, out, "summarization model qwen2.5:0.5b: missing")
}

func TestIndexCommandRequiresPath(t *testing.T) {
	t.Setenv("NUTRIBOT_RAG_INDEX_PATH", "")
	_, err := execute(t, "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rag.index_path")
}
