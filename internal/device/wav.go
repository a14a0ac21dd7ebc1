package device

import (
	"encoding/binary"
	"time"
)

const wavHeaderSize = 44

// EncodeWAV wraps PCM16LE mono samples in a RIFF/WAVE container.
// An empty buffer yields an empty blob.
func EncodeWAV(pcm []byte, sampleRate int) AudioBlob {
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}
	blob := AudioBlob{ContentType: "audio/wav", SampleRate: sampleRate}
	if len(pcm) == 0 {
		return blob
	}

	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], channels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], channels*bitsPerSample/8)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)

	blob.Data = out
	blob.Duration = time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
	return blob
}
