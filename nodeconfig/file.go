package nodeconfig

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/oharbase/processornode/errors"
)

// Security limits for the configuration file, sized for a small
// line-oriented file.
const (
	maxConfigFileSize = 1 << 20 // 1MB
	maxPathLength     = 4096
)

// tagLine is the required first non-empty line of a configuration file.
const tagLine = "nodeconfiguration"

// LoadFile reads path, validates it, and returns the parsed Configuration.
// A parse error on a non-comment data line is fatal: the whole read fails,
// matching the content-type tag line and name/value line format described
// by the wire configuration schema.
func LoadFile(path string) (*Configuration, error) {
	data, err := safeReadConfigFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "NodeConfiguration", "LoadFile", "failed to read configuration file")
	}
	return Parse(data)
}

// Parse parses the line-oriented configuration file format from data.
func Parse(data []byte) (*Configuration, error) {
	cfg := New()
	scanner := bufio.NewScanner(bytes.NewReader(data))

	sawTag := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawTag {
			if line != tagLine {
				return nil, errors.WrapInvalid(errors.ErrConfigNotTagged, "NodeConfiguration", "Parse",
					"first non-empty line must be the \"nodeconfiguration\" tag")
			}
			sawTag = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := splitDataLine(line)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrConfigCorrupt, "NodeConfiguration", "Parse",
				"malformed configuration line: "+line)
		}
		cfg.HandleNewItem(Item{Name: name, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapInvalid(err, "NodeConfiguration", "Parse", "failed scanning configuration file")
	}
	if !sawTag {
		return nil, errors.WrapInvalid(errors.ErrConfigNotTagged, "NodeConfiguration", "Parse", "missing \"nodeconfiguration\" tag line")
	}
	return cfg, nil
}

// splitDataLine splits a "name<TAB>value" line at its first tab; both the
// name and the value must be non-empty, and the value may contain further
// tabs.
func splitDataLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, '\t')
	if idx <= 0 || idx == len(line)-1 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

// safeReadConfigFile reads a configuration file after checking its path
// (non-empty, bounded length, no traversal outside the working directory),
// that it is a regular file, and that it is no larger than
// maxConfigFileSize. No particular file suffix is required.
func safeReadConfigFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.ErrConfigPathUnsafe
	}
	if len(path) > maxPathLength {
		return nil, errors.WrapInvalid(errors.ErrConfigPathUnsafe, "NodeConfiguration", "safeReadConfigFile", "path too long")
	}

	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, errors.WrapInvalid(err, "NodeConfiguration", "safeReadConfigFile", "cannot resolve absolute path")
	}

	if filepath.IsAbs(path) {
		if strings.Contains(filepath.ToSlash(absPath), "..") {
			return nil, errors.WrapInvalid(errors.ErrConfigPathUnsafe, "NodeConfiguration", "safeReadConfigFile", "path traversal not allowed: "+path)
		}
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.WrapInvalid(err, "NodeConfiguration", "safeReadConfigFile", "cannot get working directory")
		}
		relPath, err := filepath.Rel(cwd, absPath)
		if err != nil || strings.HasPrefix(relPath, "..") {
			return nil, errors.WrapInvalid(errors.ErrConfigPathUnsafe, "NodeConfiguration", "safeReadConfigFile", "path resolves outside working directory: "+path)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "NodeConfiguration", "safeReadConfigFile", "cannot stat configuration file")
	}
	if info.Size() > maxConfigFileSize {
		return nil, errors.WrapInvalid(errors.ErrConfigCorrupt, "NodeConfiguration", "safeReadConfigFile", "configuration file too large")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(errors.ErrConfigPathUnsafe, "NodeConfiguration", "safeReadConfigFile", "not a regular file: "+path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "NodeConfiguration", "safeReadConfigFile", "cannot read configuration file")
	}
	return data, nil
}
