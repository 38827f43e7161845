package watch

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// frontmatter holds the metadata a transcript can carry ahead of its
// body.
type frontmatter struct {
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
}

// parseFrontmatter splits YAML frontmatter from a transcript. The second
// return value is the body, which is the whole content when no
// frontmatter is present or it fails to parse.
func parseFrontmatter(content []byte) (*frontmatter, []byte) {
	if !bytes.HasPrefix(content, []byte("---")) {
		return nil, content
	}

	rest := content[3:]

	idx := bytes.IndexByte(rest, '\n')
	if idx < 0 {
		return nil, content
	}
	rest = rest[idx+1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, content
	}

	block := rest[:end]

	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, content
	}

	return &fm, body
}
