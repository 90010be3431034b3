package workload

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Error codes for LoadError.
const (
	ErrCodeNotFound    = "W001" // Path does not exist
	ErrCodeParse       = "W002" // YAML or CUE syntax error
	ErrCodeBuildFailed = "W003" // CUE evaluation failed
	ErrCodeDecode      = "W004" // Value does not match the workload shape
	ErrCodeInvalid     = "W005" // Missing or duplicate transaction ID
)

// LoadError describes why a workload could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads a workload from path.
//
// .yaml and .yml files are decoded strictly: unknown fields are errors.
// .cue files are compiled on their own; a directory is loaded as a CUE
// package. Anything else returns ErrUnsupportedFormat.
func Load(path string) (*Workload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("workload not found: %s", path)}
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading workload: %v", err)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data, path)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParseYAML decodes a YAML workload. source names the workload in errors.
func ParseYAML(data []byte, source string) (*Workload, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("%s: %v", source, err)}
	}
	return f.Build(source)
}

// ParseCUE compiles and decodes a single CUE file.
func ParseCUE(data []byte, source string) (*Workload, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(source))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: err.Error(), Pos: value.Pos()}
	}
	return decodeCUE(value, source)
}

// LoadCUEDir loads every .cue file in dir as one CUE package.
func LoadCUEDir(dir string) (*Workload, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return decodeCUE(value, dir)
}

func decodeCUE(value cue.Value, source string) (*Workload, error) {
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error(), Pos: value.Pos()}
	}

	var f File
	if txs := value.LookupPath(cue.ParsePath("transactions")); txs.Exists() {
		if err := txs.Decode(&f.Transactions); err != nil {
			return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("transactions: %v", err), Pos: txs.Pos()}
		}
	}
	if l := value.LookupPath(cue.ParsePath("ledger")); l.Exists() {
		if err := l.Decode(&f.Ledger); err != nil {
			return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("ledger: %v", err), Pos: l.Pos()}
		}
	}
	return f.Build(source)
}

// IsLoadError reports whether err came from loading a workload.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le) || errors.Is(err, ErrUnsupportedFormat)
}
