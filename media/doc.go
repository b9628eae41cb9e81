// Package media wraps ffprobe and ffmpeg for the pipeline: loading a source
// asset, pulling the audio track out of video containers, and exporting the
// planned chunks as standalone mp3 files.
//
// Every subprocess goes through a process.Runner so tests can replace the
// binaries with fakes.
package media
