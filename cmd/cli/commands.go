package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/Empreinte/pkg/logger"
)

// splitArgs separates the leading positional argument from trailing flags.
func splitArgs(args []string) (string, []string) {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			rest := append([]string{}, args[:i]...)
			return arg, append(rest, args[i+1:]...)
		}
	}
	return "", args
}

func handleAdd(args []string) error {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(args)

	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	songID := addCmd.String("id", "", "Song identifier (default: \"Artist - Title\" from tags, else the file name)")
	addCmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: empreinte add <audio_file> [-id <song_id>]")
		return errUsage
	}

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	fmt.Println("Processing audio file...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	song, err := svc.AddSong(ctx, audioPath, *songID)
	if err != nil {
		return fmt.Errorf("failed to add song: %w", err)
	}

	green.Println("\n✓ Successfully added song to index")
	fmt.Printf("   ID:           %s\n", song.ID)
	fmt.Printf("   Fingerprints: %s\n", humanize.Comma(int64(song.Fingerprints)))
	fmt.Printf("   Duration:     %s\n", formatDuration(song.DurationMs))
	fmt.Printf("   Took:         %s\n", time.Since(start).Round(time.Millisecond))
	log.Infof("Added song %q", song.ID)
	return nil
}

func handleMatch(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: empreinte match <audio_file>")
		return errUsage
	}
	audioPath := args[0]

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	fmt.Println("Analyzing audio file...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := svc.MatchSong(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("failed to match song: %w", err)
	}

	if !res.Matched {
		yellow.Println("\n✗ No match found")
		if res.SongID != "" {
			fmt.Printf("   Best candidate: %s (%d votes)\n", res.SongID, res.Votes)
		}
		return nil
	}

	green.Println("\n✓ Match found")
	bold.Printf("   %s\n", res.SongID)
	fmt.Printf("   Votes: %s | Offset: %s | Strategy: %s\n",
		humanize.Comma(int64(res.Votes)), formatDuration(int(res.OffsetMs)), res.Strategy)
	return nil
}

func handleList() error {
	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	songs, err := svc.ListSongs(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list songs: %w", err)
	}

	if len(songs) == 0 {
		yellow.Println("\nNo songs in index")
		return nil
	}

	fmt.Printf("\nFound %d song(s):\n\n", len(songs))
	for i, song := range songs {
		bold.Printf("%d. %s\n", i+1, song.ID)
		fmt.Printf("   Fingerprints: %s", humanize.Comma(int64(song.Fingerprints)))
		if song.DurationMs > 0 {
			fmt.Printf(" | Duration: %s", formatDuration(song.DurationMs))
		}
		fmt.Println()
	}
	return nil
}

func handleDelete(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: empreinte delete <song_id>")
		return errUsage
	}
	songID := strings.Join(args, " ")

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	if err := svc.DeleteSong(context.Background(), songID); err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}

	green.Printf("\n✓ Deleted %s\n", songID)
	return nil
}

func handleFingerprint(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: empreinte fingerprint <audio_file>")
		return errUsage
	}
	audioPath := args[0]

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	var size string
	if info, err := os.Stat(audioPath); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	sum, err := svc.Fingerprint(context.Background(), audioPath)
	if err != nil {
		return fmt.Errorf("failed to fingerprint: %w", err)
	}

	bold.Printf("%s", audioPath)
	if size != "" {
		fmt.Printf(" (%s)", size)
	}
	fmt.Println()
	fmt.Printf("   Duration:     %s\n", formatDuration(sum.DurationMs))
	fmt.Printf("   Frames:       %s\n", humanize.Comma(int64(sum.Frames)))
	fmt.Printf("   Peaks:        %s\n", humanize.Comma(int64(sum.Peaks)))
	fmt.Printf("   Fingerprints: %s\n", humanize.Comma(int64(sum.Fingerprints)))
	fmt.Printf("   Digest:       %016x\n", sum.Digest)
	return nil
}

func formatDuration(ms int) string {
	d := ms / 1000
	return fmt.Sprintf("%d:%02d.%03d", d/60, d%60, ms%1000)
}
