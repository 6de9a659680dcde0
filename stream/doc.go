// Package stream decodes server-sent event byte streams into discrete
// events.
//
// The Decoder is pull-based: callers obtain one Event at a time with Next,
// which gives backpressure for free since the decoder never reads past the
// next frame. Frames are delimited by a blank line (bare or CRLF); a data
// payload of "[DONE]" or the empty string terminates the sequence with no
// further events, even if more bytes follow. Malformed frames are skipped
// and counted; three in a row abort the stream with *MalformedError.
// End-of-stream with a partial frame in the buffer ends the sequence
// cleanly and is flagged in Stats when no terminal marker was seen.
package stream
