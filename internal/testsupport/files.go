package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// TemplateJSON is a small image-edit graph: two image slots (12, 13), a text
// encoder (6), a sampler (3) and one output node (9).
const TemplateJSON = `{
  "3": {"class_type": "KSampler", "inputs": {"seed": 1, "steps": 20, "model": ["4", 0], "positive": ["6", 0]}},
  "4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "model.safetensors"}},
  "6": {"class_type": "CLIPTextEncode", "inputs": {"text": "placeholder", "clip": ["4", 1]}},
  "9": {"class_type": "SaveImage", "inputs": {"filename_prefix": "easel", "images": ["8", 0]}},
  "12": {"class_type": "LoadImage", "inputs": {"image": "example.png"}},
  "13": {"class_type": "LoadImage", "inputs": {"image": "example.png"}}
}`

// WriteTemplate writes content to path, creating parent directories.
func WriteTemplate(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
