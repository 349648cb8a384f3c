// Package tageditor reads and writes ID3v2 tags (title/artist/album/year)
// on MP3 files, used both from a TUI action and from the cmd/tag.go CLI
// subcommand.
package tageditor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bogem/id3v2/v2"
)

// Tags is the editable subset of an MP3's ID3v2 frames.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Year   string
	Lyrics string
}

// Read opens path and returns its current tag values.
func Read(path string) (Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}, fmt.Errorf("tageditor: open %s: %w", path, err)
	}
	defer tag.Close()

	t := Tags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
		Year:   tag.Year(),
	}
	if frames := tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription")); len(frames) > 0 {
		if uslt, ok := frames[0].(id3v2.UnsynchronisedLyricsFrame); ok {
			t.Lyrics = uslt.Lyrics
		}
	}
	return t, nil
}

// Write applies t's non-empty fields to path and saves it in-place,
// preserving any frame t doesn't set.
func Write(path string, t Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("tageditor: open %s: %w", path, err)
	}
	defer tag.Close()

	if t.Title != "" {
		tag.SetTitle(t.Title)
	}
	if t.Artist != "" {
		tag.SetArtist(t.Artist)
	}
	if t.Album != "" {
		tag.SetAlbum(t.Album)
	}
	if t.Year != "" {
		tag.SetYear(t.Year)
	}
	if t.Lyrics != "" {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "",
			Lyrics:            t.Lyrics,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("tageditor: save %s: %w", path, err)
	}
	return nil
}

// RenameByTag renames path to "<artist> - <title><ext>" in the same
// directory.
func RenameByTag(path string) (string, error) {
	t, err := Read(path)
	if err != nil {
		return "", err
	}
	if t.Artist == "" || t.Title == "" {
		return "", fmt.Errorf("tageditor: %s is missing artist or title tag", path)
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	newPath := filepath.Join(dir, sanitizeFileName(t.Artist+" - "+t.Title)+ext)

	if err := os.Rename(path, newPath); err != nil {
		return "", fmt.Errorf("tageditor: rename %s to %s: %w", path, newPath, err)
	}
	return newPath, nil
}

func sanitizeFileName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// ParseYear validates a year string is a plausible 4-digit year, used by
// the CLI flag parser before handing it to Write.
func ParseYear(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "", fmt.Errorf("tageditor: invalid year %q: %w", s, err)
	}
	return s, nil
}
