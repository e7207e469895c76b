package pointio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"geneclust/internal/model"
)

var (
	ErrOpenDestination = errors.New("could not open destination")
	ErrWriteFailed     = errors.New("write failed")
)

const (
	PhaseOpen  = "open"
	PhaseWrite = "write"
)

// WriteError reports which phase of a file write failed.
type WriteError struct {
	Path  string
	Phase string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error {
	if e.Phase == PhaseOpen {
		return []error{ErrOpenDestination, e.Err}
	}
	return []error{ErrWriteFailed, e.Err}
}

// Report is a clustering result ready to be written.
type Report[T model.Coord] struct {
	Points    []model.Point[T]
	Labels    []int
	Centroids []model.Point[T]
	K         int
	WCSS      float64
}

func (r Report[T]) validate() error {
	if len(r.Points) == 0 {
		return fmt.Errorf("report has no points")
	}
	if len(r.Labels) != len(r.Points) {
		return fmt.Errorf("report has %d labels for %d points", len(r.Labels), len(r.Points))
	}
	if r.K <= 0 || len(r.Centroids) < r.K {
		return fmt.Errorf("report has %d centroids for k=%d", len(r.Centroids), r.K)
	}
	for i, label := range r.Labels {
		if label < 0 || label >= r.K {
			return fmt.Errorf("report point %d has label %d outside [0, %d)", i, label, r.K)
		}
	}
	return nil
}

// WriteReport writes points grouped under their centroid, headed by the WCSS.
func WriteReport[T model.Coord](path string, report Report[T]) error {
	if err := report.validate(); err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		return FormatReport(w, report)
	})
}

// FormatReport renders report to w.
func FormatReport[T model.Coord](w io.Writer, report Report[T]) error {
	if err := report.validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	dim := report.Points[0].Dimension()

	bw.WriteString("# Cluster grouping | Format: ")
	for d := 0; d < dim; d++ {
		fmt.Fprintf(bw, "coord%d ", d+1)
	}
	bw.WriteString("| cluster_id\n\n")
	fmt.Fprintf(bw, "WCSS is %s\n\n", strconv.FormatFloat(report.WCSS, 'g', -1, 64))

	for c := 0; c < report.K; c++ {
		fmt.Fprintf(bw, "# Cluster %d\n", c)
		bw.WriteString("Centroid: ")
		writeCoords(bw, report.Centroids[c])
		for i, p := range report.Points {
			if report.Labels[i] == c {
				writeCoords(bw, p)
			}
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func writeCoords[T model.Coord](w *bufio.Writer, p model.Point[T]) {
	for _, v := range p {
		w.WriteString(formatCoord(v))
		w.WriteString(", ")
	}
	w.WriteString("\n")
}

// WritePoints writes one space-separated point per line.
func WritePoints[T model.Coord](path string, points []model.Point[T]) error {
	return writeAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, p := range points {
			for i, v := range p {
				if i > 0 {
					bw.WriteByte(' ')
				}
				bw.WriteString(formatCoord(v))
			}
			bw.WriteByte('\n')
		}
		return bw.Flush()
	})
}

func formatCoord[T model.Coord](v T) string {
	if model.IsInteger[T]() {
		return fmt.Sprint(v)
	}
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

// writeAtomic streams into a temp file next to path and renames it into place
// only when every write, flush and close succeeded.
func writeAtomic(path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Phase: PhaseOpen, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if strings.HasSuffix(path, zstdSuffix) {
		enc, encErr := zstd.NewWriter(tmp)
		if encErr != nil {
			return &WriteError{Path: path, Phase: PhaseOpen, Err: encErr}
		}
		if fillErr := fill(enc); fillErr != nil {
			_ = enc.Close()
			return &WriteError{Path: path, Phase: PhaseWrite, Err: fillErr}
		}
		if closeErr := enc.Close(); closeErr != nil {
			return &WriteError{Path: path, Phase: PhaseWrite, Err: closeErr}
		}
	} else if fillErr := fill(tmp); fillErr != nil {
		return &WriteError{Path: path, Phase: PhaseWrite, Err: fillErr}
	}

	if chmodErr := tmp.Chmod(0o644); chmodErr != nil {
		return &WriteError{Path: path, Phase: PhaseWrite, Err: chmodErr}
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		return &WriteError{Path: path, Phase: PhaseWrite, Err: syncErr}
	}
	if closeErr := tmp.Close(); closeErr != nil {
		return &WriteError{Path: path, Phase: PhaseWrite, Err: closeErr}
	}
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		_ = os.Remove(tmp.Name())
		return &WriteError{Path: path, Phase: PhaseWrite, Err: renameErr}
	}
	return nil
}
