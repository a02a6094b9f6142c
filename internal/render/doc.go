// Package render turns a canvas history into a timelapse video.
//
// A Frame holds one RGB24 output buffer and the colour of every logical
// cell. Applying a snapshot redraws every cell; applying a delta redraws
// only the cells it names. The buffer is emitted once per history entry,
// so an encoder always sees one full frame per entry while the pixel
// writes stay proportional to the cells that changed.
//
// Encoders consume the frame stream. FFmpeg pipes it into an ffmpeg
// process; tests use an in-memory encoder.
//
// Renderer wires a history source to an encoder. Artifacts are addressed
// by canvas id, reused when present, and written through a temp file that
// is renamed into place only after the encoder succeeds.
package render
