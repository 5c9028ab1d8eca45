package fileaccess

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// LocationKind classifies a picker selection.
type LocationKind int

const (
	// LocationNone means nothing was selected.
	LocationNone LocationKind = iota
	// LocationLocal is a path on the local file system.
	LocationLocal
	// LocationAbstract is a resource identifier without a local path, such as
	// a content:// URI handed out by a document provider.
	LocationAbstract
)

func (k LocationKind) String() string {
	switch k {
	case LocationLocal:
		return "local"
	case LocationAbstract:
		return "abstract"
	default:
		return "none"
	}
}

// Location is a classified picker selection.
type Location struct {
	Kind LocationKind
	// Path is set for LocationLocal.
	Path string
	// URI is the raw selection for LocationAbstract.
	URI string
}

var schemeRE = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.\-]*):(//)?`)

// opaqueSchemes are URI schemes recognized without a "//" authority.
var opaqueSchemes = map[string]bool{
	"content": true,
	"urn":     true,
	"data":    true,
	"blob":    true,
}

// ClassifySelection turns the raw string a picker returned into a Location.
//
// file:// URIs become local paths. Other scheme:// URIs and opaque URIs with a
// known scheme (content:, urn:) are abstract. Anything else, including
// Windows drive paths and names like "draft:v2.md", is a local path.
func ClassifySelection(sel string) Location {
	if sel == "" {
		return Location{Kind: LocationNone}
	}

	m := schemeRE.FindStringSubmatch(sel)
	if m == nil || len(m[1]) < 2 {
		return Location{Kind: LocationLocal, Path: sel}
	}
	if m[2] == "" {
		if opaqueSchemes[strings.ToLower(m[1])] {
			return Location{Kind: LocationAbstract, URI: sel}
		}
		return Location{Kind: LocationLocal, Path: sel}
	}

	if !strings.EqualFold(m[1], "file") {
		return Location{Kind: LocationAbstract, URI: sel}
	}

	u, err := url.Parse(sel)
	if err != nil || u.Path == "" || (u.Host != "" && u.Host != "localhost") {
		return Location{Kind: LocationAbstract, URI: sel}
	}
	p := u.Path
	// file:///C:/dir/a.txt parses to /C:/dir/a.txt
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return Location{Kind: LocationLocal, Path: filepath.FromSlash(p)}
}
