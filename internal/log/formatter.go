package log

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format renders an entry from the pattern. Supported verbs are %time, %level,
// %field, %msg, %caller, %func, %goroutine and %n.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", strings.ToUpper(entry.Level.String()), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	output = strings.Replace(output, "%caller", getCaller(entry), 1)
	output = strings.Replace(output, "%func", getFunc(entry), 1)
	output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	output = strings.ReplaceAll(output, "%n", "\n")
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	return []byte(output), nil
}

// callerDepth is the runtime.Caller skip from Format back to the logging call
// site when logrus did not record the caller itself.
const callerDepth = 8

// frame resolves the call site of an entry.
func frame(entry *logrus.Entry) (file, function string, line int, ok bool) {
	if entry.HasCaller() {
		return entry.Caller.File, entry.Caller.Function, entry.Caller.Line, true
	}
	pc, file, line, ok := runtime.Caller(callerDepth)
	if !ok {
		return "", "", 0, false
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
	}
	return file, function, line, true
}

// afterLast returns the part of s after the last sep, or s itself.
func afterLast(s, sep string) string {
	if i := strings.LastIndex(s, sep); i != -1 && i+len(sep) < len(s) {
		return s[i+len(sep):]
	}
	return s
}

// getCaller returns package/file:line of the log call site.
func getCaller(entry *logrus.Entry) string {
	file, function, line, ok := frame(entry)
	if !ok {
		return "unknown"
	}
	pkg := "unknown"
	if qualified, _, found := strings.Cut(afterLast(function, "/"), "."); found {
		pkg = qualified
	}
	return fmt.Sprintf("%s/%s:%d", pkg, afterLast(file, "/"), line)
}

func getFunc(entry *logrus.Entry) string {
	_, function, _, ok := frame(entry)
	if !ok || function == "" {
		return "unknown"
	}
	return afterLast(function, ".")
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if idField := strings.Fields(stack); len(idField) > 0 {
		return idField[0]
	}
	return "unknown"
}

// buildFields renders entry data as sorted "k=v " pairs, empty when there is none.
func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		val := entry.Data[key]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(fmt.Sprint(val))
		b.WriteByte(' ')
	}
	return b.String()
}
