package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/Empreinte/pkg/empreinte"
	"github.com/himanishpuri/Empreinte/pkg/logger"
)

var audioExts = map[string]bool{
	".wav": true, ".wave": true, ".mp3": true,
	".flac": true, ".ogg": true, ".m4a": true, ".aac": true, ".opus": true,
}

func collectAudio(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audioExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// handleIndex ingests every audio file under a directory. Files that are
// already indexed are skipped; other failures are reported and counted.
func handleIndex(args []string) error {
	log := logger.GetLogger()

	dir, flagArgs := splitArgs(args)
	indexCmd := flag.NewFlagSet("index", flag.ExitOnError)
	jobs := indexCmd.Int("j", max(runtime.NumCPU()/2, 1), "Files processed concurrently")
	indexCmd.Parse(flagArgs)

	if dir == "" {
		fmt.Println("Usage: empreinte index <dir> [-j <n>]")
		return errUsage
	}

	files, err := collectAudio(dir)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}
	if len(files) == 0 {
		yellow.Printf("No audio files under %s\n", dir)
		return nil
	}

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Indexing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	var added, skipped, failed atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*jobs)
	for _, path := range files {
		path := path
		g.Go(func() error {
			start := time.Now()
			defer func() { bar.EwmaIncrement(time.Since(start)) }()

			fileCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			song, err := svc.AddSong(fileCtx, path, "")
			switch {
			case err == nil:
				added.Add(1)
				log.Debugf("Indexed %s as %q", path, song.ID)
			case errors.Is(err, empreinte.ErrSongExists):
				skipped.Add(1)
			case errors.Is(err, empreinte.ErrStorageFailure):
				failed.Add(1)
				return err
			default:
				failed.Add(1)
				log.Warnf("Skipping %s: %v", path, err)
			}
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		bar.Abort(false)
	}
	p.Wait()

	fmt.Println()
	green.Printf("✓ %d added", added.Load())
	fmt.Printf(", %d already indexed", skipped.Load())
	if n := failed.Load(); n > 0 {
		red.Printf(", %d failed", n)
	}
	fmt.Println()

	if err != nil {
		return fmt.Errorf("index aborted: %w", err)
	}
	return nil
}
