package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"
	"github.com/klauspost/compress/gzip"
)

// ErrOutputExists guards finished worlds against accidental reruns.
var ErrOutputExists = errors.New("output directory already exists")

// PrepareOutput validates the output path and creates it when missing. An
// existing directory is fatal unless overwriting was asked for; it is then
// removed and recreated empty, so nothing from an earlier run survives.
func PrepareOutput(path string, overwrite bool) error {
	_, err := os.Stat(path)
	if err == nil {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("clearing output: %w", err)
		}
		return os.MkdirAll(path, 0755)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.MkdirAll(path, 0755)
}

// ValidateTemplate makes sure the template directory looks like a world
// before anything is written, by parsing its level.dat.
func ValidateTemplate(dir string) error {
	f, err := os.Open(filepath.Join(dir, "level.dat"))
	if err != nil {
		return fmt.Errorf("template has no level.dat: %w", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("template level.dat: %w", err)
	}
	var lv save.Level
	if _, err := nbt.NewDecoder(zr).Decode(&lv); err != nil {
		return fmt.Errorf("template level.dat: %w", err)
	}
	logger.Debug().Str("template", lv.Data.LevelName).Msg("validated template world")
	return nil
}

// CopyTemplate replicates the template world into the output directory.
// The template supplies everything a playable world needs beyond regions,
// level.dat first of all. Symlinks and other irregular files are skipped.
func CopyTemplate(template, out string) error {
	return filepath.WalkDir(template, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(template, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(out, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, dst)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// SetLevelName rewrites the world name inside the output's level.dat so
// the converted world shows up in game under its console name. Every
// other field keeps its raw bytes; only the name tag is replaced.
func SetLevelName(root, name string) error {
	path := filepath.Join(root, "level.dat")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening level.dat: %w", err)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("reading level.dat: %w", err)
	}
	var lv struct {
		Data nbt.RawMessage `nbt:"Data"`
	}
	if _, err := nbt.NewDecoder(zr).Decode(&lv); err != nil {
		f.Close()
		return fmt.Errorf("parsing level.dat: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	var fields map[string]nbt.RawMessage
	if err := lv.Data.Unmarshal(&fields); err != nil {
		return fmt.Errorf("parsing level.dat data: %w", err)
	}
	fields["LevelName"] = nbt.RawMessage{Type: nbt.TagString, Data: stringTagPayload(name)}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rewriting level.dat: %w", err)
	}
	zw := gzip.NewWriter(out)
	err = nbt.NewEncoder(zw).Encode(struct {
		Data map[string]nbt.RawMessage `nbt:"Data"`
	}{fields}, "")
	if err != nil {
		out.Close()
		return fmt.Errorf("encoding level.dat: %w", err)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// stringTagPayload is the wire form of a TagString: big endian length
// prefix, then the bytes.
func stringTagPayload(s string) []byte {
	b := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(b, uint16(len(s)))
	copy(b[2:], s)
	return b
}
