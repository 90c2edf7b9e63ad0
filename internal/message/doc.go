// Package message parses and encodes HDF5 object header messages.
//
// Each object header is a list of typed messages. This package handles the
// messages needed to describe groups and datasets:
//
//   - Dataspace (0x0001): rank, current and maximum dimensions. See [Dataspace].
//   - Link info (0x0002) and group info (0x000A): compact link storage.
//   - Datatype (0x0003): element type, including variable-length sequences
//     and fixed-size arrays. See [Datatype].
//   - Link (0x0006): hard and soft links. See [Link].
//   - Data layout (0x0008): compact, contiguous, or chunked storage. See [Layout].
//   - Filter pipeline (0x000B). See [FilterPipeline].
//   - Attribute (0x000C) and attribute info (0x0015). See [Attribute].
//   - Continuation (0x0010). See [Continuation].
//
// Other message types parse to [Unknown] and are ignored by callers.
//
// Messages that can be written implement [Encoder]. Encoding always targets
// the newest format version this package reads, so files written here are
// readable by HDF5 1.10 and later.
package message
