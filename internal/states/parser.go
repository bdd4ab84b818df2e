package states

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/snapshot/internal/fsutil"
	"github.com/banshee-data/snapshot/internal/monitoring"
)

// ErrNoRecords is returned by ParseFiles when no file yielded a record.
var ErrNoRecords = errors.New("no state records loaded")

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// FileReport summarises one parsed file.
type FileReport struct {
	Path      string
	Lines     int
	Records   int
	Malformed int
}

// Result is the outcome of ParseFiles. Records keep file order, then line
// order within each file.
type Result struct {
	Records []State
	Files   []FileReport
	// Loaded counts files that produced at least one record.
	Loaded int
	// Skipped lists files that could not be opened or read.
	Skipped []string
}

// Malformed returns the total number of skipped lines across all files.
func (r Result) Malformed() int {
	n := 0
	for _, f := range r.Files {
		n += f.Malformed
	}
	return n
}

// Parser reads state files through a FileSystem.
type Parser struct {
	// FS defaults to the OS filesystem.
	FS fsutil.FileSystem
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
	// OnFile is called before each file with its position in the list.
	OnFile func(index, total int, path string)

	malformed *monitoring.Throttle
}

// NewParser returns a Parser reading from fs. A nil fs reads from disk.
func NewParser(fs fsutil.FileSystem, logger *log.Logger) *Parser {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{
		FS:        fs,
		Logger:    logger,
		malformed: monitoring.NewThrottle(time.Second, 5),
	}
}

func (p *Parser) logf(format string, v ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// ParseFile reads every line of path. Malformed lines are skipped and
// counted in the report; only open and read failures return an error.
func (p *Parser) ParseFile(path string) ([]State, FileReport, error) {
	report := FileReport{Path: path}

	fs := p.FS
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, report, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []State
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		report.Lines++
		line := scanner.Text()
		st, ok := ParseLine(line)
		if !ok {
			if isBlank(line) {
				continue
			}
			report.Malformed++
			p.malformed.Logf("[StateParser] %s:%d: skipping malformed line", path, report.Lines)
			continue
		}
		out = append(out, st)
	}
	if err := scanner.Err(); err != nil {
		return nil, report, fmt.Errorf("read %s: %w", path, err)
	}

	report.Records = len(out)
	return out, report, nil
}

// ParseFiles parses paths in order. checkpoint, when non-nil, is called
// before each file and a non-nil return aborts parsing with that error
// unchanged. Unreadable files are logged and listed in Result.Skipped.
// ErrNoRecords is returned only when no file yields any record.
func (p *Parser) ParseFiles(paths []string, checkpoint func() error) (Result, error) {
	var res Result
	for i, path := range paths {
		if checkpoint != nil {
			if err := checkpoint(); err != nil {
				return Result{}, err
			}
		}
		if p.OnFile != nil {
			p.OnFile(i, len(paths), path)
		}

		recs, report, err := p.ParseFile(path)
		if err != nil {
			p.logf("[StateParser] warning: skipping %s: %v", path, err)
			res.Skipped = append(res.Skipped, path)
			continue
		}
		res.Files = append(res.Files, report)
		if report.Records == 0 {
			p.logf("[StateParser] %s: no records (%d lines, %d malformed)", path, report.Lines, report.Malformed)
			continue
		}
		res.Loaded++
		res.Records = append(res.Records, recs...)
	}

	if len(res.Records) == 0 {
		return res, ErrNoRecords
	}
	p.logf("[StateParser] loaded %d records from %d/%d files (%d malformed lines)",
		len(res.Records), res.Loaded, len(paths), res.Malformed())
	return res, nil
}

func isBlank(line string) bool {
	for _, r := range line {
		if !isSeparator(r) {
			return false
		}
	}
	return true
}
