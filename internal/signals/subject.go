package signals

import (
	"threatlens/internal/domain"
	"threatlens/internal/metadata"
)

// URLSubject validates rawurl and builds its Subject. The URL text itself is
// the content the pattern rules run over.
func URLSubject(rawurl string) (Subject, error) {
	info, err := metadata.ParseURL(rawurl)
	if err != nil {
		return Subject{}, err
	}
	return Subject{
		Type:    domain.SubjectURL,
		Target:  rawurl,
		Content: []byte(rawurl),
		URL:     &info,
	}, nil
}

// FileSubject validates an upload and builds its Subject. allowed is the
// extension allowlist, empty for any.
func FileSubject(name string, content []byte, allowed []string) (Subject, error) {
	info, err := metadata.ParseFile(name, content, allowed)
	if err != nil {
		return Subject{}, err
	}
	return Subject{
		Type:    domain.SubjectFile,
		Target:  info.Name,
		Content: content,
		File:    &info,
	}, nil
}
