package pkg

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// DistWriter writes release archives: a tar stream compressed according to
// the archive's file extension. Supported are .tar, .tar.gz, .tar.xz and
// .tar.br.
type DistWriter struct {
	hdl        *os.File
	compressor io.WriteCloser
	archive    *tar.Writer
	buffer     []byte
}

// NewDistWriter creates the archive file and sets up the matching
// compressor.
func NewDistWriter(filename string) (*DistWriter, error) {
	hdl, err := os.Create(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create %s", filename)
	}

	var compressor io.WriteCloser
	switch {
	case strings.HasSuffix(filename, ".tar.gz"):
		compressor = gzip.NewWriter(hdl)
	case strings.HasSuffix(filename, ".tar.xz"):
		compressor, err = xz.NewWriter(hdl)
		if err != nil {
			hdl.Close()
			return nil, eris.Wrapf(err, "Failed to initialize xz writer for %s", filename)
		}
	case strings.HasSuffix(filename, ".tar.br"):
		compressor = brotli.NewWriterLevel(hdl, brotli.BestCompression)
	case strings.HasSuffix(filename, ".tar"):
		// uncompressed
	default:
		hdl.Close()
		return nil, eris.Errorf("%s has an unsupported archive extension", filename)
	}

	var target io.Writer = hdl
	if compressor != nil {
		target = compressor
	}

	return &DistWriter{
		hdl:        hdl,
		compressor: compressor,
		archive:    tar.NewWriter(target),
		buffer:     make([]byte, 4096),
	}, nil
}

// WriteFile stores reader's content under the given archive path, keeping
// the file's mode and modification time.
func (w *DistWriter) WriteFile(name string, info os.FileInfo, reader io.Reader) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return eris.Wrapf(err, "Failed to build archive header for %s", name)
	}

	header.Name = name
	err = w.archive.WriteHeader(header)
	if err != nil {
		return eris.Wrapf(err, "Failed to write archive header for %s", name)
	}

	_, err = io.CopyBuffer(w.archive, reader, w.buffer)
	if err != nil {
		return eris.Wrapf(err, "Failed to pack %s", name)
	}

	return nil
}

// Close flushes the tar index and the compressor and closes the archive.
func (w *DistWriter) Close() error {
	err := w.archive.Close()
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "Failed to finish archive")
	}

	if w.compressor != nil {
		err = w.compressor.Close()
		if err != nil {
			w.hdl.Close()
			return eris.Wrap(err, "Failed to flush compressor")
		}
	}

	return w.hdl.Close()
}
