// ABOUTME: File-backed microphone for MP3 and FLAC sources
// ABOUTME: Decodes a file at its own rate and paces it like a capture device
package input

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// File is a driver that plays an audio file into the capture pipeline
type File struct {
	Path string
	Loop bool
}

// NewFile creates a file driver for an .mp3 or .flac file
func NewFile(path string, loop bool) *File {
	return &File{Path: path, Loop: loop}
}

// Open decodes the file header and returns a paced device
func (f *File) Open(cfg Config, onBlock BlockFunc) (Device, error) {
	src, err := openFileSource(f.Path)
	if err != nil {
		return nil, err
	}
	if f.Loop {
		src = &loopSource{path: f.Path, blockSource: src}
	}

	cfg.logger().Info("capture file opened", "path", f.Path, "sample_rate", src.SampleRate())

	return newPacedDevice(src, cfg, onBlock), nil
}

func openFileSource(path string) (blockSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return openMP3(path)
	case ".flac":
		return openFLAC(path)
	default:
		return nil, fmt.Errorf("unsupported capture file type: %s", path)
	}
}

// mp3Source decodes MP3; go-mp3 always yields 16-bit stereo
type mp3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	raw     []byte
	stereo  []float32
}

func openMP3(path string) (*mp3Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	return &mp3Source{file: file, decoder: decoder}, nil
}

func (s *mp3Source) SampleRate() int {
	return s.decoder.SampleRate()
}

func (s *mp3Source) ReadBlock(dst []float32) (int, error) {
	need := len(dst) * 4
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]

	n, err := io.ReadFull(s.decoder, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	frames := n / 4
	if cap(s.stereo) < frames*2 {
		s.stereo = make([]float32, frames*2)
	}
	stereo := s.stereo[:frames*2]
	for i := range stereo {
		stereo[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}

	mono := downmix(dst[:0], stereo, 2)
	return len(mono), err
}

func (s *mp3Source) Close() error {
	return s.file.Close()
}

// flacSource decodes FLAC frame by frame
type flacSource struct {
	stream  *flac.Stream
	scale   float32
	pending []float32
}

func openFLAC(path string) (*flacSource, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flac file: %w", err)
	}

	return &flacSource{
		stream: stream,
		scale:  float32(int64(1) << (stream.Info.BitsPerSample - 1)),
	}, nil
}

func (s *flacSource) SampleRate() int {
	return int(s.stream.Info.SampleRate)
}

func (s *flacSource) ReadBlock(dst []float32) (int, error) {
	for len(s.pending) < len(dst) {
		frame, err := s.stream.ParseNext()
		if err != nil {
			n := copy(dst, s.pending)
			s.pending = s.pending[:0]
			if errors.Is(err, io.EOF) {
				return n, io.EOF
			}
			return n, fmt.Errorf("flac decode error: %w", err)
		}

		channels := len(frame.Subframes)
		if channels == 0 {
			continue
		}
		for i := range frame.Subframes[0].Samples {
			var sum float32
			for _, sub := range frame.Subframes {
				sum += float32(sub.Samples[i]) / s.scale
			}
			s.pending = append(s.pending, sum/float32(channels))
		}
	}

	n := copy(dst, s.pending)
	s.pending = append(s.pending[:0], s.pending[n:]...)
	return n, nil
}

func (s *flacSource) Close() error {
	return s.stream.Close()
}

// loopSource reopens the file when it ends
type loopSource struct {
	blockSource
	path string
}

func (s *loopSource) ReadBlock(dst []float32) (int, error) {
	n, err := s.blockSource.ReadBlock(dst)
	if !errors.Is(err, io.EOF) {
		return n, err
	}

	s.blockSource.Close()
	next, openErr := openFileSource(s.path)
	if openErr != nil {
		return n, openErr
	}
	s.blockSource = next
	return n, nil
}
