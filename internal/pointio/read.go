// Package pointio loads datasets from whitespace-separated text files and
// writes grouped clustering reports. Paths ending in .zst are zstd-compressed.
package pointio

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/klauspost/compress/zstd"

	"geneclust/internal/logging"
	"geneclust/internal/model"
)

const zstdSuffix = ".zst"

const maxLineBytes = 1 << 20

// ReadFile loads points from path.
func ReadFile[T model.Coord](path string, logger *slog.Logger) ([]model.Point[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open points %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, zstdSuffix) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd points %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	points, err := ReadPoints[T](r, logging.OrDiscard(logger).With("path", path))
	if err != nil {
		return nil, fmt.Errorf("read points %s: %w", path, err)
	}
	return points, nil
}

// ReadPoints parses one point per line. Lines with no coordinates, an
// unparsable token or a dimension differing from the first point are skipped
// with a warning. Blank lines are ignored.
func ReadPoints[T model.Coord](r io.Reader, logger *slog.Logger) ([]model.Point[T], error) {
	logger = logging.OrDiscard(logger)
	parse := coordParser[T]()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var points []model.Point[T]
	dim := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		point := make(model.Point[T], 0, len(fields))
		var parseErr error
		for _, field := range fields {
			v, err := parse(field)
			if err != nil {
				parseErr = err
				break
			}
			point = append(point, v)
		}
		if parseErr != nil {
			logger.Warn("skipping malformed line", "line", lineNo, "text", line, "error", parseErr)
			continue
		}
		if dim == 0 {
			dim = len(point)
		} else if len(point) != dim {
			logger.Warn("skipping line with unexpected dimension", "line", lineNo, "dimension", len(point), "want", dim)
			continue
		}
		points = append(points, point)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func coordParser[T model.Coord]() func(string) (T, error) {
	if model.IsInteger[T]() {
		bits, signed := integerLayout[T]()
		if signed {
			return func(s string) (T, error) {
				v, err := strconv.ParseInt(s, 10, bits)
				if err != nil {
					return 0, err
				}
				return T(v), nil
			}
		}
		return func(s string) (T, error) {
			v, err := strconv.ParseUint(s, 10, bits)
			if err != nil {
				return 0, err
			}
			return T(v), nil
		}
	}
	return func(s string) (T, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return T(v), nil
	}
}

// integerLayout reports the bit width and signedness of an integer T.
func integerLayout[T model.Coord]() (bits int, signed bool) {
	var zero, one T = 0, 1
	return int(unsafe.Sizeof(zero)) * 8, zero-one < zero
}
