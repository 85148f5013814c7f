package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type entry struct {
	Level   string         `json:"level"`
	Time    string         `json:"time"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// minLevel is read once from CONVOYSET_LOG_LEVEL; defaults to info.
var minLevel = func() int {
	if r, ok := levelRank[os.Getenv("CONVOYSET_LOG_LEVEL")]; ok {
		return r
	}
	return levelRank["info"]
}()

func Log(level, msg string, fields map[string]any) {
	if levelRank[level] < minLevel {
		return
	}
	e := entry{Level: level, Time: time.Now().UTC().Format(time.RFC3339Nano), Message: msg, Fields: fields}
	b, _ := json.Marshal(e)
	fmt.Fprintln(os.Stdout, string(b))
}

func Debug(msg string, fields map[string]any) { Log("debug", msg, fields) }
func Info(msg string, fields map[string]any)  { Log("info", msg, fields) }
func Warn(msg string, fields map[string]any)  { Log("warn", msg, fields) }
func Error(msg string, fields map[string]any) { Log("error", msg, fields) }
