package storage

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
)

// Pack writes the corpus files and index of the folder to w as a gzipped
// tar archive. Entry names are relative to the folder.
func (s *Storage) Pack(w io.Writer) (int, error) {
	files, err := s.Files()
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(filepath.Join(s.Folder, IndexFile)); err == nil {
		files = append(files, IndexFile)
	}

	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)
	for _, name := range files {
		if err := addFile(tw, filepath.Join(s.Folder, filepath.FromSlash(name)), name); err != nil {
			_ = tw.Close()
			_ = gw.Close()
			return 0, fmt.Errorf("archive %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		_ = gw.Close()
		return 0, fmt.Errorf("close tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}
	return len(files), nil
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Unpack extracts a gzipped tar archive made by Pack into the folder.
// Entries escaping the folder are rejected.
func (s *Storage) Unpack(r io.Reader) (int, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("gzip reader: %w", err)
	}
	defer func() { _ = gr.Close() }()

	tr := tar.NewReader(gr)
	count := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read tar: %w", err)
		}

		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return count, fmt.Errorf("entry %q escapes %s", hdr.Name, s.Folder)
		}
		target := filepath.Join(s.Folder, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, fmt.Errorf("create dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return count, fmt.Errorf("create parent dir: %w", err)
			}
			f, err := os.Create(target)
			if err != nil {
				return count, fmt.Errorf("create file %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				return count, fmt.Errorf("write file %s: %w", target, err)
			}
			if err := f.Close(); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// SplitRatios sets the share of files assigned to dev and test.
type SplitRatios struct {
	Dev  float64
	Test float64
	Seed uint64
}

// AssignSplits shuffles the corpus files with a seeded generator and gives
// the first Test share to test, the next Dev share to dev and the rest to
// train.
func (s *Storage) AssignSplits(ratios SplitRatios) (map[string]Split, error) {
	if ratios.Dev < 0 || ratios.Test < 0 || ratios.Dev+ratios.Test > 1 {
		return nil, fmt.Errorf("invalid split ratios dev=%g test=%g", ratios.Dev, ratios.Test)
	}
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(ratios.Seed, ratios.Seed))
	rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })

	nTest := int(ratios.Test * float64(len(files)))
	nDev := int(ratios.Dev * float64(len(files)))
	index := make(map[string]Split, len(files))
	for i, f := range files {
		switch {
		case i < nTest:
			index[f] = SplitTest
		case i < nTest+nDev:
			index[f] = SplitDev
		default:
			index[f] = SplitTrain
		}
	}
	return index, nil
}

// WriteIndex replaces the index file of the folder.
func (s *Storage) WriteIndex(index map[string]Split) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", IndexFile, err)
	}
	return os.WriteFile(filepath.Join(s.Folder, IndexFile), append(data, '\n'), 0o644)
}
