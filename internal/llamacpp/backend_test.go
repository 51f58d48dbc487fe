//go:build !llama

package llamacpp

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(p, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write temp model: %v", err)
	}
	return p
}

func TestAcquireReleaseBackend_RefcountRoundTrip(t *testing.T) {
	start := RefCount()
	release, err := AcquireBackend()
	if err != nil {
		t.Fatalf("AcquireBackend: %v", err)
	}
	if RefCount() != start+1 {
		t.Fatalf("expected refcount %d, got %d", start+1, RefCount())
	}
	release()
	if RefCount() != start {
		t.Fatalf("expected refcount back to %d, got %d", start, RefCount())
	}
}

func TestAcquireBackend_MultipleCoexist(t *testing.T) {
	r1, err := AcquireBackend()
	if err != nil {
		t.Fatal(err)
	}
	r2, err := AcquireBackend()
	if err != nil {
		t.Fatal(err)
	}
	r1()
	r2()
}

func TestLoadModel_MissingFile(t *testing.T) {
	if _, err := LoadModel("/no/such/path.gguf", 0); err == nil {
		t.Fatalf("expected error for missing model file")
	}
}

func TestLoadModel_ContextDecode(t *testing.T) {
	path := writeTempModel(t)
	model, err := LoadModel(path, 0)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer model.Close()

	ctx, err := model.NewContext(ContextConfig{NCtx: 512, NBatch: 512, NThreads: 2})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	logits, err := ctx.Decode([]int32{1, 2, 3}, 0, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(logits) != stubVocabSize {
		t.Fatalf("expected %d logits, got %d", stubVocabSize, len(logits))
	}

	if _, err := ctx.Decode(make([]int32, 600), 0, false); err == nil {
		t.Fatalf("expected context overflow error")
	}
}
