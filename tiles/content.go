package tiles

import (
	"bytes"
	"path"
	"strings"
)

// ContentType is the format of a tile payload.
type ContentType string

const (
	ContentUnknown ContentType = ""
	ContentB3DM    ContentType = "b3dm"
	ContentI3DM    ContentType = "i3dm"
	ContentPNTS    ContentType = "pnts"
	ContentCMPT    ContentType = "cmpt"
	ContentGLB     ContentType = "glb"
	ContentGLTF    ContentType = "gltf"
	ContentTileset ContentType = "json"
)

var magics = []struct {
	magic []byte
	typ   ContentType
}{
	{[]byte("b3dm"), ContentB3DM},
	{[]byte("i3dm"), ContentI3DM},
	{[]byte("pnts"), ContentPNTS},
	{[]byte("cmpt"), ContentCMPT},
	{[]byte("glTF"), ContentGLB},
}

// DetectContentType returns the type of the given payload. Magic bytes take
// precedence over the uri extension.
func DetectContentType(payload []byte, uri string) ContentType {
	for _, m := range magics {
		if bytes.HasPrefix(payload, m.magic) {
			return m.typ
		}
	}

	if trimmed := bytes.TrimSpace(payload); len(trimmed) != 0 && trimmed[0] == '{' {
		if isExternalURI(uri) {
			return ContentTileset
		}
		if strings.EqualFold(uriExt(uri), ".gltf") {
			return ContentGLTF
		}
		return ContentTileset
	}

	switch strings.ToLower(uriExt(uri)) {
	case ".glb":
		return ContentGLB
	case ".gltf":
		return ContentGLTF
	}
	return ContentUnknown
}

func isExternalURI(uri string) bool {
	return strings.EqualFold(uriExt(uri), ".json")
}

func uriExt(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	return path.Ext(uri)
}
