package main

import (
	"io"
	"os"

	"github.com/soundkit/flaccore/bitio"
)

// fileSource adapts an *os.File to flaccore.Source.
type fileSource struct {
	f *os.File
}

func (s *fileSource) Read(p []byte) (int, bitio.Status) {
	n, err := s.f.Read(p)
	if err != nil {
		return n, bitio.StatusEndOfStream
	}
	return n, bitio.StatusOK
}

func (s *fileSource) Seek(offset int64) error {
	_, err := s.f.Seek(offset, io.SeekStart)
	return err
}

func (s *fileSource) Tell() (int64, error) {
	return s.f.Seek(0, io.SeekCurrent)
}

func (s *fileSource) Length() (int64, bool) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, false
	}
	return fi.Size(), true
}

// fileSink adapts an *os.File to flaccore.Sink.
type fileSink struct {
	f *os.File
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *fileSink) Seek(offset int64) error {
	_, err := s.f.Seek(offset, io.SeekStart)
	return err
}
