package verrno

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

// Error is the ApiError of the filesystem contract: a POSIX errno tagged
// with a human message, the path it occurred on (if any), and an optional
// captured stack. It is the only error type that crosses a backend
// boundary; anything else is a programming bug and should panic instead.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// New builds an Error for code with the given message, no path attached.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewPath builds an Error for code attached to path.
func NewPath(code Code, path, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// WithStack captures the caller's stack into e and returns e, for errors
// that should be debuggable across a transaction abort.
func (e *Error) WithStack() *Error {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	e.Stack = string(buf[:n])
	return e
}

// Errno returns the libc integer value of the error's code.
func (e *Error) Errno() int {
	return e.Code.Errno()
}

// Error implements the error interface in the form documented by §7:
// "Error: <CODE>: <message>, '<path>'".
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Path != "" {
		b.WriteString(", '")
		b.WriteString(e.Path)
		b.WriteString("'")
	}
	return b.String()
}

// RewritePath replaces oldPath with newPath in the error's Path (as a
// prefix) and in every quoted path in Message that equals oldPath or lies
// beneath it. Used at backend boundaries (overlay,
// folder-adapter, mount dispatch) to translate an intra-backend path back
// to the path the caller used.
func (e *Error) RewritePath(oldPath, newPath string) {
	if oldPath == "" {
		return
	}
	if e.Path == oldPath {
		e.Path = newPath
	} else if strings.HasPrefix(e.Path, oldPath) {
		e.Path = newPath + strings.TrimPrefix(e.Path, oldPath)
	}
	e.Message = strings.ReplaceAll(e.Message, "'"+oldPath+"'", "'"+newPath+"'")
	e.Message = strings.ReplaceAll(e.Message, "'"+oldPath+"/", "'"+newPath+"/")
}

// Is allows errors.Is(err, verrno.New(verrno.ENOENT, "")) style comparisons
// by code alone.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == e.Code
}

// Serialize encodes e as §4.A specifies: a u32 length prefix followed by
// utf-8 JSON.
func (e *Error) Serialize() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// Deserialize decodes the wire form produced by Serialize.
func Deserialize(b []byte) (*Error, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("verrno: truncated error payload")
	}
	n := binary.LittleEndian.Uint32(b)
	if uint32(len(b)-4) < n {
		return nil, fmt.Errorf("verrno: truncated error payload")
	}
	var e Error
	if err := json.Unmarshal(b[4:4+n], &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// As extracts an *Error from err, if any, the way errors.As would.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
