// Package resolver maps between document URIs, filesystem paths and Ada
// compilation-unit names following the GNAT file naming convention: unit
// A.B lives in a-b.ads (spec) and a-b.adb (body).
package resolver

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Unit identifies one source file in every coordinate system the server
// uses.
type Unit struct {
	URI          string
	AbsolutePath string
	RelativePath string
	Name         string
	IsSpec       bool
}

var (
	configured bool
	root       string
	extensions []string
)

// Configure sets the workspace root and recognized source extensions. Must
// be called once before any Resolve.
func Configure(configRoot string, configExtensions []string) {
	if configured {
		panic("resolver already configured")
	}
	configured = true
	root = filepath.Clean(configRoot)
	extensions = configExtensions
}

// Resolve turns a file URI or path into a Unit.
func Resolve(base string) (Unit, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Unit{}, fmt.Errorf("failed to parse uri: %w", err)
	}
	path := u.Path
	if path == "" {
		path = base
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return resolveAbsolute(path)
}

func resolveAbsolute(absolute string) (Unit, error) {
	cleaned := filepath.Clean(absolute)

	ext := filepath.Ext(cleaned)
	if !knownExtension(ext) {
		return Unit{}, fmt.Errorf("not an Ada source file: %s", cleaned)
	}

	rel, err := filepath.Rel(root, cleaned)
	if err != nil {
		return Unit{}, fmt.Errorf("failed to relativize %s: %w", cleaned, err)
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(cleaned)}
	return Unit{
		URI:          u.String(),
		AbsolutePath: cleaned,
		RelativePath: rel,
		Name:         UnitName(filepath.Base(cleaned)),
		IsSpec:       ext == ".ads",
	}, nil
}

// UnitName derives the compilation-unit name from a GNAT-named file:
// "a-text_io.ads" becomes "A.Text_Io". Ada names are case-insensitive, so
// the title casing is presentational only.
func UnitName(file string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	parts := strings.Split(base, "-")
	for i, part := range parts {
		parts[i] = titleIdent(part)
	}
	return strings.Join(parts, ".")
}

// FileNames returns the GNAT spec and body file names for a unit name:
// "A.B" yields ("a-b.ads", "a-b.adb").
func FileNames(unit string) (spec, body string) {
	base := strings.ToLower(strings.ReplaceAll(unit, ".", "-"))
	return base + ".ads", base + ".adb"
}

// IgnoreDir reports directories the scanner should not descend into.
func IgnoreDir(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") && name != "." && name != string(filepath.Separator)
}

func knownExtension(ext string) bool {
	for _, e := range extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// titleIdent capitalizes the first letter of an identifier and of each
// underscore-separated word.
func titleIdent(s string) string {
	segs := strings.Split(s, "_")
	for i, seg := range segs {
		if seg == "" {
			continue
		}
		segs[i] = strings.ToUpper(seg[:1]) + seg[1:]
	}
	return strings.Join(segs, "_")
}
