package mime

import (
	"path/filepath"
	"strings"
)

var Extension = map[string]MIME{
	".avif": AVIF,
	".css":  CSS,
	".gif":  GIF,
	".htm":  HTML,
	".html": HTML,
	".jpeg": JPEG,
	".jpg":  JPEG,
	".js":   JS,
	".mjs":  JS,
	".json": JSON,
	".pdf":  PDF,
	".png":  PNG,
	".svg":  SVG,
	".wasm": WASM,
	".webp": WEBP,
	".xml":  XML,
	".gz":   GZIP,
	".yaml": YAML,
	".zip":  ZIP,
	".ico":  ICO,
	".mp4":  MP4,
	".txt":  Plain,
}

// ByFilename guesses the MIME by the file extension, falling back to OctetStream.
func ByFilename(filename string) MIME {
	if mime, found := Extension[strings.ToLower(filepath.Ext(filename))]; found {
		return mime
	}

	return OctetStream
}
