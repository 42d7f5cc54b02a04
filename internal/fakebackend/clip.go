// ABOUTME: Builds the short silent WAV clip served for every finished voice task
// ABOUTME: 8 kHz mono 16-bit PCM, a quarter second long

package fakebackend

import (
	"bytes"
	"encoding/binary"
)

var silentClip = wavSilence(8000, 2000)

func wavSilence(sampleRate, samples uint32) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := samples * uint32(blockAlign)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, sampleRate)
	_ = binary.Write(&buf, binary.LittleEndian, sampleRate*uint32(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}
