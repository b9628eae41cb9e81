// Package process runs external tools such as ffmpeg and ffprobe.
//
// Run starts the binary in its own process group. Cancelling the context
// sends SIGTERM to the whole group and escalates to SIGKILL after the grace
// period. Callers that need to be tested without the real binaries depend
// on the Runner interface and swap in a RunnerFunc.
package process
