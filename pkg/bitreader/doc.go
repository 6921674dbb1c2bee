// Package bitreader provides bit-level access to replay message buffers.
//
// Buffers are read least-significant bit first within little-endian bytes,
// which is the layout every Source 2 entity message uses.
//
// # Reading
//
//	r := bitreader.New(data)
//	idx, err := r.ReadUBitVar()
//	if err != nil {
//	    return err
//	}
//
// Every read checks the remaining length up front. A read that would run past
// the end of the buffer returns ErrBufferExhausted and leaves the cursor where
// it was; partial values are never returned.
//
// # Writing
//
// Writer is the mirror image of Reader. It is used to build message buffers
// for fixtures and by the field path encoder.
//
// # Ownership
//
// Reader borrows its buffer for the duration of a single message decode and
// never retains it afterwards. Neither type is safe for concurrent use.
package bitreader
