package publications

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var fence = []byte("---")

type frontMatter struct {
	Title       scalar `yaml:"title"`
	Date        scalar `yaml:"date"`
	Description scalar `yaml:"description"`
	YouTubeID   scalar `yaml:"youtubeId"`
}

// scalar keeps the literal text of a YAML scalar, so an unquoted
// 2024-05-10 stays a date string instead of becoming a timestamp.
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	if n.ShortTag() == "!!null" {
		*s = ""
		return nil
	}
	*s = scalar(n.Value)
	return nil
}

// splitFrontMatter separates a leading "---" fenced YAML block from the body.
// Files without a block return an empty header and the whole input as body.
func splitFrontMatter(raw []byte) (header, body []byte) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	first, rest, ok := cutLine(raw)
	if !ok || !bytes.Equal(bytes.TrimSpace(first), fence) {
		return nil, raw
	}
	var hdr bytes.Buffer
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = cutLine(rest)
		if bytes.Equal(bytes.TrimSpace(line), fence) {
			return hdr.Bytes(), rest
		}
		hdr.Write(line)
		hdr.WriteByte('\n')
	}
	// unterminated block
	return nil, raw
}

func cutLine(b []byte) (line, rest []byte, found bool) {
	line, rest, found = bytes.Cut(b, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r")), rest, found || len(line) > 0
}

func parseFrontMatter(raw []byte) (frontMatter, []byte, error) {
	header, body := splitFrontMatter(raw)
	var fm frontMatter
	if len(bytes.TrimSpace(header)) == 0 {
		return fm, body, nil
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return frontMatter{}, nil, fmt.Errorf("front matter: %w", err)
	}
	return fm, body, nil
}
