package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cli "github.com/helloweilei/ropenapi/internal/cli"
)

// Swagger 2.0 document with two tags, a shared definition and an untagged op.
const petstore = `{
  "swagger": "2.0",
  "info": {"title": "E2E Petstore", "version": "1.0.0"},
  "basePath": "/v2",
  "paths": {
    "/pet/{petId}": {
      "get": {
        "tags": ["pet"],
        "summary": "Find pet by ID",
        "operationId": "getPetById",
        "parameters": [{"name": "petId", "in": "path", "required": true, "type": "integer"}],
        "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Pet"}}}
      },
      "post": {
        "tags": ["pet"],
        "consumes": ["application/x-www-form-urlencoded"],
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "type": "integer"},
          {"name": "name", "in": "formData", "type": "string"}
        ],
        "responses": {"405": {"description": "invalid"}}
      }
    },
    "/store/order": {
      "post": {
        "tags": ["store"],
        "operationId": "placeOrder",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/Order"}}],
        "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Order"}}}
      }
    },
    "/health": {
      "get": {"responses": {"200": {"description": "ok"}}}
    }
  },
  "definitions": {
    "Pet": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "id": {"type": "integer", "format": "int64"},
        "name": {"type": "string"},
        "tags": {"type": "array", "items": {"$ref": "#/definitions/Tag"}}
      }
    },
    "Tag": {"type": "object", "properties": {"name": {"type": "string"}}},
    "Order": {
      "type": "object",
      "properties": {
        "petId": {"type": "integer"},
        "status": {"type": "string", "enum": ["placed", "delivered"]},
        "pet": {"$ref": "#/definitions/Pet"}
      }
    }
  }
}`

func writeTempSpec(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(p, []byte(petstore), 0o600))
	return p
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), "cli execute %v", args)
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	var list []string
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		list = append(list, rel)
		// hash path + contents to be robust
		_, _ = h.Write([]byte(rel))
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		_, _ = h.Write(b)
		return nil
	})
	require.NoError(t, err, "walk %s", dir)
	sort.Strings(list)
	return list, hex.EncodeToString(h.Sum(nil))
}

func TestE2E_Generate_Deterministic(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t)
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	runCLI(t, "generate", "--input", spec, "--out", dir1, "--force")
	runCLI(t, "generate", "--input", spec, "--out", dir2, "--force")

	files1, sum1 := digestDir(t, dir1)
	files2, sum2 := digestDir(t, dir2)
	assert.Equal(t, files1, files2)
	assert.Equal(t, sum1, sum2, "generated outputs differ between runs")
	assert.Equal(t, []string{
		"default/default-swagger.ts",
		"default/types.ts",
		"pet/pet-swagger.ts",
		"pet/types.ts",
		"store/store-swagger.ts",
		"store/types.ts",
	}, files1)

	svc, err := os.ReadFile(filepath.Join(dir1, "pet", "pet-swagger.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(svc), "export async function getPetById(params: Types.GetPetByIdParams)")
	assert.Contains(t, string(svc), "return request<Types.Pet>({")
	assert.Contains(t, string(svc), "data: Types.PostPetByPetIdData")

	types, err := os.ReadFile(filepath.Join(dir1, "store", "types.ts"))
	require.NoError(t, err)
	// Order pulls Pet, and Pet pulls Tag, into the store module
	for _, name := range []string{"export type Order", "export type Pet", "export type Tag"} {
		assert.Contains(t, string(types), name)
	}
}

func TestE2E_Generate_FromURLMatchesFile(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(petstore))
	}))
	defer srv.Close()

	fromFile := t.TempDir()
	fromURL := t.TempDir()
	runCLI(t, "generate", "--input", writeTempSpec(t), "--out", fromFile, "--force")
	runCLI(t, "generate", "--input", srv.URL+"/v2/swagger.json", "--out", fromURL, "--force")

	_, sum1 := digestDir(t, fromFile)
	_, sum2 := digestDir(t, fromURL)
	assert.Equal(t, sum1, sum2)
}

// TestE2E_TypeCheck compiles the output with tsc when ROPENAPI_E2E_ONLINE=1.
func TestE2E_TypeCheck(t *testing.T) {
	if os.Getenv("ROPENAPI_E2E_ONLINE") != "1" || !haveCmd("npx") {
		t.Skip("set ROPENAPI_E2E_ONLINE=1 with npx on PATH to type-check output")
	}
	out := t.TempDir()
	runCLI(t, "generate", "--input", writeTempSpec(t), "--out", out, "--request-module", "../request")
	helper := "export default function request<T>(opts: {url: string; method: string; params?: unknown; data?: unknown}): Promise<T> {\n  return fetch(opts.url, {method: opts.method}).then((r) => r.json() as Promise<T>);\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(out, "request.ts"), []byte(helper), 0o600))

	files, _ := digestDir(t, out)
	args := []string{"-y", "-p", "typescript", "tsc", "--noEmit", "--strict", "--target", "es2017", "--lib", "es2017,dom"}
	for _, f := range files {
		args = append(args, filepath.Join(out, f))
	}
	if err := runCmdWithTimeout(out, 3*time.Minute, "npx", args...); err != nil {
		if strings.Contains(err.Error(), "ENOTFOUND") {
			t.Skipf("tsc unavailable (likely offline): %v", err)
		}
		t.Fatalf("tsc failed: %v", err)
	}
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCmdWithTimeout(dir string, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		// include output for diagnostics
		return &execError{err: err, output: out.String()}
	}
	return nil
}

type execError struct {
	err    error
	output string
}

func (e *execError) Error() string { return e.err.Error() + ": " + e.output }
