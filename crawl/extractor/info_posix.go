package extractor

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	goeval "github.com/edisonguo/govaluate"

	"github.com/nci/swathgrid/granule"
)

func GetPosixInfo(filePath string, fStat os.FileInfo) *PosixInfo {
	stat, ok := fStat.Sys().(*syscall.Stat_t)
	if !ok {
		return &PosixInfo{FilePath: filePath, Size: fStat.Size(), MTime: fStat.ModTime().UTC()}
	}
	fileSignature := fmt.Sprintf("%s%d%d%d%d", filePath, stat.Ino, stat.Size, stat.Mtim.Sec, stat.Mtim.Nsec)
	return &PosixInfo{
		FilePath: filePath,
		INode:    stat.Ino,
		Size:     stat.Size,
		MTime:    time.Unix(int64(stat.Mtim.Sec), int64(stat.Mtim.Nsec)).UTC(),
		CTime:    time.Unix(int64(stat.Ctim.Sec), int64(stat.Ctim.Nsec)).UTC(),
		ID:       fmt.Sprintf("%x", md5.Sum([]byte(fileSignature))),
	}
}

var patternVariables = map[string]struct{}{
	"path":       {},
	"name":       {},
	"type":       {},
	"campaign":   {},
	"instrument": {},
	"level":      {},
	"platform":   {},
	"date":       {},
}

// ParsePatternExpression compiles a granule selection expression such as
// `name =~ "AH2MAP-L1C.*\\.nc$" && date =~ "^2022-11"`. An empty
// pattern selects every file.
func ParsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := patternVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, validVariableNames())
			}
		}
	}
	return expr, nil
}

func validVariableNames() []string {
	names := make([]string, 0, len(patternVariables))
	for k := range patternVariables {
		names = append(names, k)
	}
	return names
}

const DefaultMaxCrawlErrors = 1000

// GranuleCrawler walks a directory tree and emits the regular files that
// satisfy the selection pattern. Directories are always descended.
// Selected files whose names are not granule names are reported on Error
// as *granule.UnrecognizedFilenameError and skipped.
type GranuleCrawler struct {
	Outputs       chan *GranuleFile
	Error         chan error
	wg            sync.WaitGroup
	concLimit     chan struct{}
	pattern       *goeval.EvaluableExpression
	followSymlink bool
}

func NewGranuleCrawler(conc int, pattern *goeval.EvaluableExpression, followSymlink bool) *GranuleCrawler {
	if conc < 1 {
		conc = 1
	}
	return &GranuleCrawler{
		Outputs:       make(chan *GranuleFile, 4096),
		Error:         make(chan error, DefaultMaxCrawlErrors),
		concLimit:     make(chan struct{}, conc),
		pattern:       pattern,
		followSymlink: followSymlink,
	}
}

// Crawl walks root and closes Outputs and Error once every directory has
// been read. Callers drain both channels concurrently.
func (gc *GranuleCrawler) Crawl(root string) {
	defer close(gc.Error)
	defer close(gc.Outputs)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		gc.sendError(err)
		return
	}

	gc.wg.Add(1)
	gc.concLimit <- struct{}{}
	gc.crawlDir(absRoot, false)
	gc.wg.Wait()
}

func (gc *GranuleCrawler) sendError(err error) {
	select {
	case gc.Error <- err:
	default:
	}
}

func (gc *GranuleCrawler) crawlDir(currPath string, serialised bool) {
	defer gc.wg.Done()
	if !serialised {
		defer func() { <-gc.concLimit }()
	}

	entries, err := os.ReadDir(currPath)
	if err != nil {
		gc.sendError(fmt.Errorf("Could not read dir: %v", err))
		return
	}

	for _, entry := range entries {
		filePath := filepath.Join(currPath, entry.Name())
		mode := entry.Type()

		var fStat os.FileInfo
		if mode&os.ModeSymlink != 0 {
			if !gc.followSymlink {
				continue
			}
			fStat, err = os.Stat(filePath)
			if err != nil {
				gc.sendError(err)
				continue
			}
			mode = fStat.Mode().Type()
		}

		if mode.IsDir() {
			gc.wg.Add(1)
			select {
			case gc.concLimit <- struct{}{}:
				go func(p string) {
					gc.crawlDir(p, false)
				}(filePath)
			default:
				gc.crawlDir(filePath, true)
			}
			continue
		}
		if !mode.IsRegular() {
			continue
		}

		md, parseErr := granule.ParseFileName(filePath)
		if gc.pattern != nil {
			ok, err := gc.evaluatePatternExpression(filePath, &md)
			if err != nil {
				gc.sendError(err)
				continue
			}
			if !ok {
				continue
			}
		}
		if parseErr != nil {
			gc.sendError(parseErr)
			continue
		}

		if fStat == nil {
			fStat, err = entry.Info()
			if err != nil {
				gc.sendError(err)
				continue
			}
		}

		gc.Outputs <- &GranuleFile{Path: filePath, Metadata: md, Posix: GetPosixInfo(filePath, fStat)}
	}
}

func (gc *GranuleCrawler) evaluatePatternExpression(filePath string, md *granule.Metadata) (bool, error) {
	return EvaluatePattern(gc.pattern, filePath, md)
}

// EvaluatePattern applies expr to a regular file. Metadata fields are
// empty strings when the name could not be parsed.
func EvaluatePattern(expr *goeval.EvaluableExpression, filePath string, md *granule.Metadata) (bool, error) {
	if expr == nil {
		return true, nil
	}
	parameters := map[string]interface{}{
		"type":       "f",
		"path":       filePath,
		"name":       filepath.Base(filePath),
		"campaign":   md.Campaign,
		"instrument": md.Instrument,
		"level":      md.Level,
		"platform":   md.Platform,
		"date":       "",
	}
	if !md.Time.IsZero() {
		parameters["date"] = md.Date()
	}

	result, err := expr.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}
