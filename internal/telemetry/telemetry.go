package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ArtifactsDir is where events and payloads are written: AGT_ARTIFACTS_DIR,
// defaulting to .agent in the working directory.
func ArtifactsDir() string {
	if dir := os.Getenv("AGT_ARTIFACTS_DIR"); dir != "" {
		return dir
	}
	return ".agent"
}

// Emit writes a single JSON line to <artifacts>/events.jsonl when
// observation is enabled. It augments fields with RFC3339Nano time and the
// event name; fields itself is not modified.
func Emit(name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}

	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		log.Warn().Err(err).Str("event", name).Msg("telemetry: marshal")
		return
	}
	appendFile("events.jsonl", append(b, '\n'))
}

// PersistPayload writes v as indented JSON under <artifacts>/payloads when
// payload persistence is enabled. The file name carries the turn ID from ctx.
func PersistPayload(ctx context.Context, kind string, v any) {
	if !PersistPayloadsEnabled() {
		return
	}
	turnID, ok := TurnIDFromContext(ctx)
	if !ok {
		turnID = "unscoped"
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("telemetry: marshal payload")
		return
	}
	name := fmt.Sprintf("%s-%d-%s.json", turnID, time.Now().UnixNano(), kind)
	dir := filepath.Join(ArtifactsDir(), "payloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("telemetry: mkdir")
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("telemetry: write payload")
	}
}

func appendFile(name string, b []byte) {
	dir := ArtifactsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("telemetry: mkdir")
		return
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("telemetry: open")
		return
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("telemetry: write")
	}
}
