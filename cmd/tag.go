package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/drgolem/tuneterm/internal/tageditor"
)

var (
	tagTitle  string
	tagArtist string
	tagAlbum  string
	tagYear   string
	tagRename bool
)

var tagCmd = &cobra.Command{
	Use:   "tag <mp3_file>",
	Short: "Read or edit ID3v2 tags on an MP3 file",
	Long: `Read or edit the title/artist/album/year ID3v2 tags on an MP3 file.

With no flags, prints the file's current tags. With one or more of
--title/--artist/--album/--year, updates those fields and saves the file.

Examples:
  # Show current tags
  tuneterm tag song.mp3

  # Set artist and title
  tuneterm tag song.mp3 --artist "Artist Name" --title "Song Title"

  # Rename the file to "<artist> - <title>.mp3" after tagging
  tuneterm tag song.mp3 --artist "Artist Name" --title "Song Title" --rename`,
	Args: cobra.ExactArgs(1),
	Run:  runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)

	tagCmd.Flags().StringVar(&tagTitle, "title", "", "set the title tag")
	tagCmd.Flags().StringVar(&tagArtist, "artist", "", "set the artist tag")
	tagCmd.Flags().StringVar(&tagAlbum, "album", "", "set the album tag")
	tagCmd.Flags().StringVar(&tagYear, "year", "", "set the year tag")
	tagCmd.Flags().BoolVar(&tagRename, "rename", false, "rename the file from its tags after saving")
}

func runTag(cmd *cobra.Command, args []string) {
	path := args[0]

	editing := tagTitle != "" || tagArtist != "" || tagAlbum != "" || tagYear != ""
	if !editing {
		tags, err := tageditor.Read(path)
		if err != nil {
			slog.Error("Failed to read tags", "file", path, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Title:  %s\nArtist: %s\nAlbum:  %s\nYear:   %s\n", tags.Title, tags.Artist, tags.Album, tags.Year)
		return
	}

	year, err := tageditor.ParseYear(tagYear)
	if err != nil {
		slog.Error("Invalid year", "error", err)
		os.Exit(1)
	}

	if err := tageditor.Write(path, tageditor.Tags{
		Title:  tagTitle,
		Artist: tagArtist,
		Album:  tagAlbum,
		Year:   year,
	}); err != nil {
		slog.Error("Failed to write tags", "file", path, "error", err)
		os.Exit(1)
	}
	slog.Info("Tags updated", "file", path)

	if tagRename {
		newPath, err := tageditor.RenameByTag(path)
		if err != nil {
			slog.Error("Failed to rename file", "error", err)
			os.Exit(1)
		}
		slog.Info("File renamed", "from", path, "to", newPath)
	}
}
