// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Per-batch temporary workspaces
//   - Atomic file replacement
//   - Cover art cropping, resizing and JPEG conversion
//
// # Workspaces
//
// A Workspace is acquired per batch and released on every exit path:
//
//	ws, err := ioutils.NewWorkspace(cfg.WorkDir, "audiobatch-")
//	if err != nil {
//	    return err
//	}
//	defer ws.Release()
//
// # Atomic Writes
//
//	f, _ := ioutils.CreateAtomic("/music/batch.zip")
//	if err := archive.Write(f, successes); err != nil {
//	    f.Abort()
//	    return err
//	}
//	return f.Commit()
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("Song: Part 1/2") // Returns "Song_ Part 1_2"
//
// # Image Processing
//
//	svc := ioutils.NewImageService()
//	art, _ := svc.CoverArt(ctx, thumbnail, 600) // square JPEG, at most 600x600
package ioutils
