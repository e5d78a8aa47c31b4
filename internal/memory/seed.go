package memory

import "strings"

// SourceStartupSeed marks the session summary seeded from a startup file.
const SourceStartupSeed = "startup_seed"

// StripFencedCode drops fenced code blocks, fences included, and trailing
// blank lines.
func StripFencedCode(markdown string) string {
	var out []string
	inFence := false
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if !inFence {
			out = append(out, strings.TrimRight(line, " \t\r"))
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// LatestFrom returns the newest entry of kind written by source.
func (s *Store) LatestFrom(kind, source string) (Entry, bool) {
	entries := s.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == kind && entries[i].Source == source {
			return entries[i], true
		}
	}
	return Entry{}, false
}

// Seed stores the startup notes as the seeded session summary. An existing
// seed is kept unless force is set. It returns the stored summary, or ""
// when nothing was written.
func (s *Store) Seed(notes string, force bool) (string, error) {
	if !force {
		if _, ok := s.LatestFrom(KindSessionSummary, SourceStartupSeed); ok {
			return "", nil
		}
	}
	summary := StripFencedCode(notes)
	if summary == "" {
		summary = strings.TrimSpace(notes)
	}
	if summary == "" {
		return "", nil
	}
	if err := s.Replace(KindSessionSummary, SourceStartupSeed, summary); err != nil {
		return "", err
	}
	return summary, nil
}
