package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docchat/internal/domain"
)

const (
	manifestFile = "manifest.json"
	chunksFile   = "chunks.jsonl"
	vectorsFile  = "vectors.f64"

	indexVersion = 1
)

// Manifest describes a persisted index and how to interpret its files.
type Manifest struct {
	IndexVersion int    `json:"index_version"`
	CreatedAt    string `json:"created_at"`
	ModelID      string `json:"model_id"`
	Dim          int    `json:"dim"`
	Count        int    `json:"count"`
	Metric       string `json:"metric"`
}

// Exists reports whether a saved index is present at dir. It is an
// explicit check so "no index yet" is never inferred from a load error.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, manifestFile))
	return err == nil
}

// Save writes the index to dir as manifest + chunk metadata (JSON lines)
// + raw little-endian vectors. A later Load returns an index whose
// searches are identical to this one's.
func (x *Index) Save(dir string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}

	m := Manifest{
		IndexVersion: indexVersion,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		ModelID:      x.modelID,
		Dim:          x.dimension,
		Count:        len(x.chunks),
		Metric:       "l2",
	}
	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	cf, err := os.Create(filepath.Join(dir, chunksFile))
	if err != nil {
		return fmt.Errorf("cannot create chunks file: %w", err)
	}
	bw := bufio.NewWriter(cf)
	for _, c := range x.chunks {
		line, err := json.Marshal(c)
		if err != nil {
			_ = cf.Close()
			return err
		}
		if _, err := bw.Write(line); err != nil {
			_ = cf.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = cf.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = cf.Close()
		return err
	}
	if err := cf.Close(); err != nil {
		return err
	}

	flat := make([]float64, 0, len(x.vectors)*x.dimension)
	for _, v := range x.vectors {
		flat = append(flat, v...)
	}
	vf, err := os.Create(filepath.Join(dir, vectorsFile))
	if err != nil {
		return fmt.Errorf("cannot create vectors file: %w", err)
	}
	if err := binary.Write(vf, binary.LittleEndian, flat); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write vectors: %w", err)
	}
	if err := vf.Close(); err != nil {
		return err
	}

	// Manifest last: its presence marks a complete save.
	if err := os.WriteFile(filepath.Join(dir, manifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}
	return nil
}

// Load reads a previously saved index from dir. It fails with
// ErrIndexNotFound when no save exists there; any other failure means
// the saved files are present but unreadable or inconsistent.
func Load(dir string) (*Index, error) {
	mb, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no saved index at %s", domain.ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("cannot read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(mb, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest in %s: %w", dir, err)
	}
	if m.Dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d in manifest", m.Dim)
	}

	chunks, err := loadChunks(filepath.Join(dir, chunksFile))
	if err != nil {
		return nil, err
	}
	if len(chunks) != m.Count {
		return nil, fmt.Errorf("manifest counts %d chunks, file has %d", m.Count, len(chunks))
	}
	vectors, err := loadVectors(filepath.Join(dir, vectorsFile), len(chunks), m.Dim)
	if err != nil {
		return nil, err
	}

	x := &Index{dimension: m.Dim, modelID: m.ModelID, vectors: vectors, chunks: chunks}
	return x, nil
}

func loadChunks(path string) ([]domain.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open chunks file: %w", err)
	}
	defer f.Close()

	var chunks []domain.Chunk
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var c domain.Chunk
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("invalid chunk line: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func loadVectors(path string, count, dim int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open vectors file: %w", err)
	}
	defer f.Close()

	flat := make([]float64, count*dim)
	if err := binary.Read(bufio.NewReader(f), binary.LittleEndian, flat); err != nil {
		return nil, fmt.Errorf("cannot read vectors: %w", err)
	}
	vectors := make([][]float64, count)
	for i := 0; i < count; i++ {
		vectors[i] = flat[i*dim : (i+1)*dim]
	}
	return vectors, nil
}
